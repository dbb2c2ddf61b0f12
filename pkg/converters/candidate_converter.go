package converters

import (
	"math"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

// FileContext is what a candidate records about the file it came from.
type FileContext struct {
	FileName         string
	SitCategory      string
	ExtractionMethod models.ExtractionMethod
	ExtractionModule string
	OCRPerformed     bool
}

func (fc FileContext) apply(meta datatypes.JSONMap) datatypes.JSONMap {
	meta["file_name"] = fc.FileName
	if fc.SitCategory != "" {
		meta["sit_category"] = fc.SitCategory
	} else {
		meta["sit_category"] = nil
	}
	if fc.ExtractionMethod != "" {
		meta["extraction_method"] = string(fc.ExtractionMethod)
	} else {
		meta["extraction_method"] = nil
	}
	meta["extraction_module"] = fc.ExtractionModule
	meta["ocr_performed"] = fc.OCRPerformed
	return meta
}

// ItemToCandidate 将挖掘结果转换为可持久化的候选项
func ItemToCandidate(scanID string, item models.CandidateItem, fc FileContext) models.Candidate {
	meta := datatypes.JSONMap{}
	for k, v := range item.Metadata {
		meta[k] = v
	}

	c := models.Candidate{
		ID:                uuid.New().String(),
		ScanID:            scanID,
		CandidateType:     item.Type,
		ElementTypeHint:   item.ElementTypeHint,
		Value:             item.Value,
		PatternTemplate:   item.PatternTemplate,
		Frequency:         item.Frequency,
		DocumentFrequency: 1,
		Confidence:        item.Confidence,
		Score:             item.Score,
		Evidence:          datatypes.JSONSlice[models.Evidence](item.Evidence),
		Metadata:          fc.apply(meta),
	}
	if h, ok := item.Metadata["entropy"].(float64); ok {
		c.Entropy = &h
	}
	return c
}

// PhraseToCandidate converts one scored phrase into a KEYWORD candidate. The
// confidence is the score clamped to [0, 1]; the candidate score is the raw
// score scaled to percent.
func PhraseToCandidate(scanID, streamName, phrase string, score float64, fc FileContext) models.Candidate {
	meta := datatypes.JSONMap{
		"source":      "sentence_transformer",
		"stream_name": streamName,
	}
	return models.Candidate{
		ID:                uuid.New().String(),
		ScanID:            scanID,
		CandidateType:     models.CandidateKeyword,
		ElementTypeHint:   models.HintKeywordList,
		Value:             phrase,
		Frequency:         1,
		DocumentFrequency: 1,
		Confidence:        math.Max(0, math.Min(1, score)),
		Score:             math.Round(score*100*10000) / 10000,
		Evidence:          datatypes.JSONSlice[models.Evidence]{},
		Metadata:          fc.apply(meta),
	}
}
