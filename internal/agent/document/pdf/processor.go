package pdf

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

const (
	ModuleText    = "pdf-text"
	ModuleTextOCR = "pdf-text+ocr"

	ocrReasonImagePDF = "auto_image_pdf"
)

// TextLayer returns the native text of every page, in page order.
type TextLayer interface {
	PageTexts(ctx context.Context, path string) ([]string, error)
}

// Rasterizer renders every page of a PDF in order and hands each one to fn.
// A page that cannot be rendered is reported through err without stopping
// the remaining pages.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, scale float64, fn func(page int, img image.Image, err error)) error
}

// PageRecognizer turns a rendered page into text.
type PageRecognizer interface {
	RecognizeImage(ctx context.Context, img image.Image) (string, error)
	Engine() string
}

type Processor struct {
	logger     logger.Logger
	text       TextLayer
	rasterizer Rasterizer
	recognizer PageRecognizer
	scale      float64
}

// NewProcessor builds the PDF processor. A nil rasterizer or recognizer
// disables OCR.
func NewProcessor(log logger.Logger, text TextLayer, rasterizer Rasterizer, recognizer PageRecognizer, scale float64) *Processor {
	if scale <= 0 {
		scale = 2
	}
	return &Processor{
		logger:     log.Named("pdf"),
		text:       text,
		rasterizer: rasterizer,
		recognizer: recognizer,
		scale:      scale,
	}
}

func (p *Processor) Extract(ctx context.Context, src document.Source) (models.ExtractionResult, error) {
	pages, err := p.text.PageTexts(ctx, src.Path)
	if err != nil {
		return models.ExtractionResult{}, fmt.Errorf("failed to read pdf text layer: %w", err)
	}
	pageCount := len(pages)
	native := strings.TrimSpace(strings.Join(pages, "\n"))

	result := document.Native(native, ModuleText)
	result.PageCount = &pageCount

	switch {
	case src.ForceOCR:
		result.Metadata[models.MetaForceOCRRequested] = true
		if text := p.ocr(ctx, src.Path); text != "" {
			p.useOCR(&result, text)
		}
	case native == "":
		if text := p.ocr(ctx, src.Path); text != "" {
			p.useOCR(&result, text)
			result.Metadata[models.MetaOCRReason] = ocrReasonImagePDF
		}
	}
	return result, nil
}

func (p *Processor) useOCR(result *models.ExtractionResult, text string) {
	result.Text = text
	result.Method = models.ExtractionOCR
	result.Metadata[models.MetaModule] = ModuleTextOCR
	result.Metadata[models.MetaOCRPerformed] = true
	result.Metadata[models.MetaOCREngine] = p.recognizer.Engine()
}

// ocr renders and recognizes every page. Pages that fail contribute "".
// It returns "" when OCR is unavailable.
func (p *Processor) ocr(ctx context.Context, path string) string {
	if p.rasterizer == nil || p.recognizer == nil {
		return ""
	}

	var texts []string
	err := p.rasterizer.Rasterize(ctx, path, p.scale, func(page int, img image.Image, err error) {
		if err != nil {
			p.logger.Warn("Failed to render page",
				logger.String("path", path),
				logger.Int("page", page),
				logger.Error(err),
			)
			texts = append(texts, "")
			return
		}
		text, err := p.recognizer.RecognizeImage(ctx, img)
		if err != nil {
			p.logger.Warn("Failed to recognize page",
				logger.String("path", path),
				logger.Int("page", page),
				logger.Error(err),
			)
			text = ""
		}
		texts = append(texts, text)
	})
	if err != nil {
		p.logger.Warn("OCR unavailable for pdf",
			logger.String("path", path),
			logger.Error(err),
		)
		return ""
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
