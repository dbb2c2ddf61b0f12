package document

import (
	"context"
	"fmt"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

// Module names recorded in extraction metadata.
const (
	ModuleText     = "text-reader"
	ModuleJSON     = "json-parser"
	ModuleDocx     = "docx-xml"
	ModuleFallback = "fallback-text-reader"
)

var textExtensions = []string{".txt", ".csv", ".md", ".log", ".xml", ".yaml", ".yml"}

// Extractor picks a processor by file extension. The declared content type
// is only recorded as a hint.
type Extractor struct {
	logger     logger.Logger
	processors map[string]Processor
}

// NewExtractor returns an extractor with the text, JSON and DOCX processors
// registered. PDF and image processors are added with Register.
func NewExtractor(log logger.Logger) *Extractor {
	e := &Extractor{
		logger:     log.Named("extractor"),
		processors: make(map[string]Processor),
	}
	e.Register(ProcessorFunc(extractText), textExtensions...)
	e.Register(ProcessorFunc(extractJSON), ".json")
	e.Register(ProcessorFunc(extractDocx), ".docx")
	return e
}

func (e *Extractor) Register(p Processor, exts ...string) {
	for _, ext := range exts {
		e.processors[ext] = p
	}
}

// Extract never fails: any processor error degrades to a raw text read and
// the degradation is recorded in the metadata.
func (e *Extractor) Extract(ctx context.Context, path, contentType string, forceOCR bool) (result models.ExtractionResult) {
	src := Source{Path: path, ContentType: contentType, ForceOCR: forceOCR}

	p, ok := e.processors[src.Ext()]
	if !ok {
		result = Native(RawText(path), ModuleFallback)
		result.Metadata[models.MetaMime] = src.Mime()
		result.Metadata[models.MetaWarning] = "best-effort extraction"
		result.Metadata[models.MetaForceOCRRequested] = forceOCR
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result = e.fallback(src, fmt.Errorf("processor panic: %v", r))
		}
	}()

	res, err := p.Extract(ctx, src)
	if err != nil {
		return e.fallback(src, err)
	}
	if res.Metadata == nil {
		res.Metadata = map[string]interface{}{}
	}
	return res
}

func (e *Extractor) fallback(src Source, err error) models.ExtractionResult {
	e.logger.Warn("Extraction degraded to raw text read",
		logger.String("path", src.Path),
		logger.Error(err),
	)
	res := Native(RawText(src.Path), ModuleFallback)
	res.Metadata[models.MetaError] = err.Error()
	return res
}
