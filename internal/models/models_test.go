package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ScanStatus
		ok       bool
	}{
		{ScanStatusPending, ScanStatusExtracting, true},
		{ScanStatusExtracting, ScanStatusExtracted, true},
		{ScanStatusExtracted, ScanStatusAnalyzing, true},
		{ScanStatusAnalyzing, ScanStatusCompleted, true},
		{ScanStatusPending, ScanStatusAnalyzing, false},
		{ScanStatusAnalyzing, ScanStatusExtracting, false},
		{ScanStatusPending, ScanStatusFailed, true},
		{ScanStatusAnalyzing, ScanStatusFailed, true},
		{ScanStatusCompleted, ScanStatusFailed, false},
		{ScanStatusFailed, ScanStatusPending, false},
		{ScanStatusCompleted, ScanStatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to))
		})
	}
}

func TestProgressAdvance(t *testing.T) {
	p := Progress{FilesTotal: 3}

	p = p.Advance(PhaseExtracting, 23.33333, 1, "a.txt")
	assert.Equal(t, 23.33, p.Pct)
	assert.Equal(t, "a.txt", p.CurrentFileName)
	assert.Equal(t, 3, p.FilesTotal)

	p = p.Advance(PhaseAnalyzing, 140, 3, "")
	assert.Equal(t, 100.0, p.Pct)
	assert.Equal(t, "a.txt", p.CurrentFileName)

	p = p.Advance(PhaseFailed, -5, 3, "")
	assert.Equal(t, 0.0, p.Pct)
}

func TestApportion(t *testing.T) {
	assert.Equal(t, 70.0, Apportion(0, 70, 0, 0))
	assert.Equal(t, 35.0, Apportion(0, 70, 1, 2))
	assert.Equal(t, 85.0, Apportion(70, 30, 1, 2))
	assert.Equal(t, 100.0, Apportion(70, 30, 4, 4))
}

func TestScanUpdate(t *testing.T) {
	msg := "boom"
	s := &Scan{ID: "s1", Status: ScanStatusFailed, ErrorMessage: &msg,
		Progress: Progress{Phase: PhaseFailed, Pct: 100, CurrentFileName: "x.pdf"}}

	u := s.Update()
	assert.True(t, u.Final)
	assert.Equal(t, "Scan failed", u.Message)
	assert.Equal(t, "boom", u.Error)

	s = &Scan{ID: "s2", Status: ScanStatusExtracting,
		Progress: Progress{Phase: PhaseExtracting, Pct: 35, CurrentFileName: "x.pdf"}}
	u = s.Update()
	assert.False(t, u.Final)
	assert.Equal(t, "Extracting content: x.pdf", u.Message)
	assert.Equal(t, 35.0, u.ProgressPct)
}

func TestExtractionResultHelpers(t *testing.T) {
	r := ExtractionResult{Method: ExtractionOCR, Metadata: map[string]interface{}{}}
	assert.True(t, r.OCRPerformed())
	assert.Equal(t, "unknown", r.Module())

	r = ExtractionResult{Method: ExtractionNative, Metadata: map[string]interface{}{MetaModule: "text-reader", MetaOCRPerformed: false}}
	assert.False(t, r.OCRPerformed())
	assert.Equal(t, "text-reader", r.Module())
}
