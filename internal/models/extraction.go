package models

type ExtractionMethod string

const (
	ExtractionNative ExtractionMethod = "NATIVE"
	ExtractionOCR    ExtractionMethod = "OCR"
	ExtractionHybrid ExtractionMethod = "HYBRID"
)

// Extraction metadata keys.
const (
	MetaModule            = "module"
	MetaOCRPerformed      = "ocr_performed"
	MetaForceOCRRequested = "force_ocr_requested"
	MetaOCRReason         = "ocr_reason"
	MetaOCREngine         = "ocr_engine"
	MetaMime              = "mime"
	MetaWarning           = "warning"
	MetaError             = "error"
)

// ExtractionResult is the text pulled out of one stored file.
type ExtractionResult struct {
	Text          string                 `json:"text"`
	Method        ExtractionMethod       `json:"method"`
	OCRConfidence *float64               `json:"ocr_confidence,omitempty"`
	PageCount     *int                   `json:"page_count,omitempty"`
	Metadata      map[string]interface{} `json:"metadata"`
}

// Module returns the extraction module recorded in the metadata.
func (r ExtractionResult) Module() string {
	if m, ok := r.Metadata[MetaModule].(string); ok && m != "" {
		return m
	}
	return "unknown"
}

// OCRPerformed reports whether OCR actually ran for this result.
func (r ExtractionResult) OCRPerformed() bool {
	if b, ok := r.Metadata[MetaOCRPerformed].(bool); ok && b {
		return true
	}
	return r.Method == ExtractionOCR
}
