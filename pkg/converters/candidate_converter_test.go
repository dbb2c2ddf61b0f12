package converters

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

func TestItemToCandidate(t *testing.T) {
	tmpl := `\b\d{3}-\d{2}-\d{4}\b`
	item := models.CandidateItem{
		Type:            models.CandidatePattern,
		ElementTypeHint: models.HintRegex,
		Value:           "123-45-6789",
		PatternTemplate: &tmpl,
		Frequency:       3,
		Confidence:      0.95,
		Score:           72.1,
		Evidence:        []models.Evidence{{Context: "ssn 123-45-6789", Position: 4, Confidence: 0.95}},
		Metadata:        map[string]interface{}{"label": "SSN", "entropy": 2.948},
	}

	c := ItemToCandidate("scan-1", item, FileContext{
		FileName:         "hr.pdf",
		SitCategory:      "HR",
		ExtractionMethod: models.ExtractionNative,
		ExtractionModule: "pdf-text",
	})

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "scan-1", c.ScanID)
	assert.Equal(t, 1, c.DocumentFrequency)
	assert.Equal(t, 3, c.Frequency)
	assert.Equal(t, &tmpl, c.PatternTemplate)
	if assert.NotNil(t, c.Entropy) {
		assert.Equal(t, 2.948, *c.Entropy)
	}
	assert.Len(t, c.Evidence, 1)
	assert.Equal(t, "SSN", c.Metadata["label"])
	assert.Equal(t, "hr.pdf", c.Metadata["file_name"])
	assert.Equal(t, "HR", c.Metadata["sit_category"])
	assert.Equal(t, "NATIVE", c.Metadata["extraction_method"])
	assert.Equal(t, "pdf-text", c.Metadata["extraction_module"])
	assert.Equal(t, false, c.Metadata["ocr_performed"])

	// the source item is left untouched
	_, tagged := item.Metadata["file_name"]
	assert.False(t, tagged)
}

func TestItemToCandidateWithoutEntropy(t *testing.T) {
	c := ItemToCandidate("s", models.CandidateItem{Type: models.CandidateKeyword, Value: "payroll"}, FileContext{})
	assert.Nil(t, c.Entropy)
	assert.Nil(t, c.Metadata["sit_category"])
	assert.Nil(t, c.Metadata["extraction_method"])
}

func TestPhraseToCandidate(t *testing.T) {
	tests := []struct {
		score      float64
		confidence float64
		want       float64
	}{
		{0.8234567, 0.8234567, 82.3457},
		{1.7, 1, 170},
		{-0.2, 0, -20},
	}
	for _, tt := range tests {
		c := PhraseToCandidate("s", "Inbox", "pay slip", tt.score, FileContext{FileName: "a.msg", ExtractionMethod: models.ExtractionOCR, OCRPerformed: true})
		assert.Equal(t, models.CandidateKeyword, c.CandidateType)
		assert.Equal(t, models.HintKeywordList, c.ElementTypeHint)
		assert.Equal(t, 1, c.Frequency)
		assert.InDelta(t, tt.confidence, c.Confidence, 1e-9)
		assert.InDelta(t, tt.want, c.Score, 1e-9)
		assert.Equal(t, "sentence_transformer", c.Metadata["source"])
		assert.Equal(t, "Inbox", c.Metadata["stream_name"])
		assert.Equal(t, "OCR", c.Metadata["extraction_method"])
		assert.Equal(t, true, c.Metadata["ocr_performed"])
	}
}
