// internal/agent/document/image/processor.go
package image

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

const ModuleImage = "ocr-image"

// Extensions handled by the image processor.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tiff", ".bmp", ".gif"}

// Processor OCRs whole images and serves as the page recognizer for
// rasterized PDFs.
type Processor struct {
	logger        logger.Logger
	preprocessors []ImagePreprocessor
	recognizer    Recognizer
}

// NewProcessor 创建新的处理器
func NewProcessor(log logger.Logger, recognizer Recognizer, preprocessors []ImagePreprocessor) *Processor {
	if recognizer == nil {
		recognizer = NoopRecognizer{}
	}
	return &Processor{
		logger:        log.Named("image"),
		preprocessors: preprocessors,
		recognizer:    recognizer,
	}
}

func (p *Processor) Engine() string { return p.recognizer.Engine() }

// Extract never returns an error: an unreadable image or a failing engine
// yields empty text with ocr_engine=unavailable.
func (p *Processor) Extract(ctx context.Context, src document.Source) (models.ExtractionResult, error) {
	text, err := p.recognizeFile(ctx, src.Path)
	one := 1
	result := models.ExtractionResult{
		Text:      text,
		Method:    models.ExtractionOCR,
		PageCount: &one,
		Metadata: map[string]interface{}{
			models.MetaModule:       ModuleImage,
			models.MetaOCREngine:    p.recognizer.Engine(),
			models.MetaOCRPerformed: true,
		},
	}
	if err != nil {
		p.logger.Warn("Image OCR failed",
			logger.String("path", src.Path),
			logger.Error(err),
		)
		result.Text = ""
		result.Metadata[models.MetaOCREngine] = EngineUnavailable
		result.Metadata[models.MetaOCRPerformed] = false
		result.Metadata[models.MetaError] = err.Error()
	}
	return result, nil
}

func (p *Processor) recognizeFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}
	return p.RecognizeImage(ctx, img)
}

// RecognizeImage preprocesses img and runs the configured engine.
func (p *Processor) RecognizeImage(ctx context.Context, img image.Image) (string, error) {
	processed, err := p.applyPreprocessing(img)
	if err != nil {
		return "", err
	}
	return p.recognizer.Recognize(ctx, processed)
}

// 图像预处理
func (p *Processor) applyPreprocessing(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("input image is nil")
	}

	result := img
	for _, processor := range p.preprocessors {
		next, err := processor.Process(result)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if next == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
		result = next
	}
	return result, nil
}
