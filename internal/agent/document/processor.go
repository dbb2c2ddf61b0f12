package document

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

// Source is one stored file handed to a processor.
type Source struct {
	Path        string
	ContentType string
	ForceOCR    bool
}

// Ext returns the lowercase file extension including the dot.
func (s Source) Ext() string {
	return strings.ToLower(filepath.Ext(s.Path))
}

// Mime returns the declared content type, or a guess from the extension.
func (s Source) Mime() string {
	if s.ContentType != "" {
		return s.ContentType
	}
	if t := mime.TypeByExtension(s.Ext()); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Processor 文档处理器接口
//
// Extract returns an error only when the file could not be handled at all;
// the extractor then falls back to a raw text read.
type Processor interface {
	Extract(ctx context.Context, src Source) (models.ExtractionResult, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, src Source) (models.ExtractionResult, error)

func (f ProcessorFunc) Extract(ctx context.Context, src Source) (models.ExtractionResult, error) {
	return f(ctx, src)
}

// RawText reads path as UTF-8, dropping undecodable bytes. Unreadable files
// yield "".
func RawText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(data), "")
}

// Native builds a NATIVE result with the given module name.
func Native(text, module string) models.ExtractionResult {
	return models.ExtractionResult{
		Text:   text,
		Method: models.ExtractionNative,
		Metadata: map[string]interface{}{
			models.MetaModule:       module,
			models.MetaOCRPerformed: false,
		},
	}
}
