package image

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// ImagePreprocessor 图像预处理接口
type ImagePreprocessor interface {
	Process(img image.Image) (image.Image, error)
}

// PreprocessConfig tunes the default pipeline.
type PreprocessConfig struct {
	// MinWidth upscales narrower images; tesseract struggles below ~1000px.
	MinWidth        int
	DenoiseStrength float64
	Contrast        float64
	SharpenStrength float64
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		MinWidth:        1000,
		DenoiseStrength: 0.5,
		Contrast:        20,
		SharpenStrength: 0.5,
	}
}

// DefaultPipeline 构建预处理管道
func DefaultPipeline(cfg PreprocessConfig) []ImagePreprocessor {
	return []ImagePreprocessor{
		NewUpscaleProcessor(cfg.MinWidth),
		NewGrayscaleProcessor(),
		NewDenoiseProcessor(cfg.DenoiseStrength),
		NewContrastNormalizationProcessor(cfg.Contrast),
		NewSharpenProcessor(cfg.SharpenStrength),
	}
}

// 放大处理器
type UpscaleProcessor struct {
	minWidth int
}

func NewUpscaleProcessor(minWidth int) *UpscaleProcessor {
	return &UpscaleProcessor{minWidth: minWidth}
}

func (p *UpscaleProcessor) Process(img image.Image) (image.Image, error) {
	if p.minWidth <= 0 || img.Bounds().Dx() >= p.minWidth {
		return img, nil
	}
	return imaging.Resize(img, p.minWidth, 0, imaging.Lanczos), nil
}

// 灰度处理器
type GrayscaleProcessor struct{}

func NewGrayscaleProcessor() *GrayscaleProcessor {
	return &GrayscaleProcessor{}
}

func (p *GrayscaleProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.Grayscale(img), nil
}

// 降噪处理器
type DenoiseProcessor struct {
	strength float64
}

func NewDenoiseProcessor(strength float64) *DenoiseProcessor {
	return &DenoiseProcessor{strength: strength}
}

func (p *DenoiseProcessor) Process(img image.Image) (image.Image, error) {
	if p.strength <= 0 {
		return img, nil
	}
	return imaging.Blur(img, p.strength), nil
}

// 锐化处理器
type SharpenProcessor struct {
	strength float64
}

func NewSharpenProcessor(strength float64) *SharpenProcessor {
	return &SharpenProcessor{strength: strength}
}

func (p *SharpenProcessor) Process(img image.Image) (image.Image, error) {
	if p.strength <= 0 {
		return img, nil
	}
	return imaging.Sharpen(img, p.strength), nil
}

// 对比度处理器
type ContrastNormalizationProcessor struct {
	amount float64
}

func NewContrastNormalizationProcessor(amount float64) *ContrastNormalizationProcessor {
	return &ContrastNormalizationProcessor{amount: amount}
}

func (p *ContrastNormalizationProcessor) Process(img image.Image) (image.Image, error) {
	return imaging.AdjustContrast(img, p.amount), nil
}

// 二值化处理器
type BinarizationProcessor struct {
	threshold uint8
}

func NewBinarizationProcessor(threshold uint8) *BinarizationProcessor {
	return &BinarizationProcessor{threshold: threshold}
}

func (p *BinarizationProcessor) Process(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}
	grayImg := imaging.Grayscale(img)
	bounds := grayImg.Bounds()
	binary := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			grayValue := color.GrayModel.Convert(grayImg.At(x, y)).(color.Gray).Y
			if grayValue > p.threshold {
				binary.SetGray(x, y, color.Gray{Y: 255})
			} else {
				binary.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return binary, nil
}
