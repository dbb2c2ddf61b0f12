package agent

import (
	"context"
	"fmt"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/agent/candidate"
	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/agent/document/image"
	"github.com/feichai0017/sit-pipeline/internal/agent/document/pdf"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

// NewRecognizer builds the OCR engine named by the config. An unknown engine
// name is an error; "none" disables OCR.
func NewRecognizer(ctx context.Context, log logger.Logger, ocrCfg *cfg.OCRConfig, textractCfg *cfg.TextractConfig) (image.Recognizer, error) {
	switch ocrCfg.Engine {
	case cfg.OCREngineTesseract, "":
		return image.NewTesseractRecognizer(ocrCfg.Languages), nil
	case cfg.OCREngineTextract:
		r, err := image.NewTextractRecognizer(ctx, textractCfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract recognizer: %w", err)
		}
		return r, nil
	case cfg.OCREngineNone:
		return image.NoopRecognizer{}, nil
	default:
		return nil, fmt.Errorf("unsupported ocr engine: %s", ocrCfg.Engine)
	}
}

// NewExtractor wires the text, JSON, DOCX, PDF and image processors into one
// extension-dispatching extractor.
func NewExtractor(ctx context.Context, log logger.Logger, ocrCfg *cfg.OCRConfig, textractCfg *cfg.TextractConfig) (*document.Extractor, error) {
	recognizer, err := NewRecognizer(ctx, log, ocrCfg, textractCfg)
	if err != nil {
		return nil, err
	}

	var pipeline []image.ImagePreprocessor
	if ocrCfg.Preprocess {
		pipeline = image.DefaultPipeline(image.DefaultPreprocessConfig())
	}
	imageProcessor := image.NewProcessor(log, recognizer, pipeline)

	extractor := document.NewExtractor(log)
	extractor.Register(imageProcessor, image.Extensions...)

	var pageOCR pdf.PageRecognizer
	var rasterizer pdf.Rasterizer
	if recognizer.Engine() != image.EngineUnavailable {
		pageOCR = imageProcessor
		rasterizer = pdf.FitzRasterizer{}
	}
	extractor.Register(pdf.NewProcessor(log, pdf.LedongthucTextLayer{}, rasterizer, pageOCR, ocrCfg.RenderScale), ".pdf")

	log.Info("Extractor initialized",
		logger.String("ocr_engine", recognizer.Engine()),
		logger.Bool("preprocess", ocrCfg.Preprocess),
	)
	return extractor, nil
}

// NewEntityExtractor returns the Ollama entity source when enabled, else the
// no-op source.
func NewEntityExtractor(c *cfg.OllamaConfig) candidate.EntityExtractor {
	if c == nil || !c.Enabled {
		return candidate.NoopEntityExtractor{}
	}
	return candidate.NewOllamaEntityExtractor(c.Endpoint, c.Model, c.Timeout)
}
