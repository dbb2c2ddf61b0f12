package config

import (
	"sync"
)

const (
	OCREngineTesseract = "tesseract"
	OCREngineTextract  = "textract"
	OCREngineNone      = "none"
)

var (
	ocrOnce   sync.Once
	ocrConfig *OCRConfig

	textractOnce   sync.Once
	textractConfig *TextractConfig
)

// OCRConfig selects the recognizer used for images and rasterized PDF pages.
type OCRConfig struct {
	Engine     string
	Languages  []string
	Preprocess bool
	// RenderScale is the zoom factor applied when rasterizing PDF pages.
	RenderScale float64
}

type TextractConfig struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadEnv()
		ocrConfig = &OCRConfig{
			Engine:      getEnv("OCR_ENGINE", OCREngineTesseract),
			Languages:   getEnvList("OCR_LANGUAGES", []string{"eng"}),
			Preprocess:  getEnvBool("OCR_PREPROCESS", true),
			RenderScale: 2,
		}
	})
	return ocrConfig
}

func GetTextractConfig() *TextractConfig {
	textractOnce.Do(func() {
		loadEnv()
		textractConfig = &TextractConfig{
			Region:        getEnv("AWS_REGION", "us-east-1"),
			Endpoint:      getEnv("AWS_ENDPOINT", ""),
			AccessKey:     getEnv("AWS_ACCESS_KEY", ""),
			SecretKey:     getEnv("AWS_SECRET_KEY", ""),
			MinConfidence: float32(getEnvInt("TEXTRACT_MIN_CONFIDENCE", 80)),
		}
	})
	return textractConfig
}
