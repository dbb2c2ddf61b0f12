package models

import (
	"time"

	"gorm.io/datatypes"
)

type CandidateType string

const (
	CandidatePattern CandidateType = "PATTERN"
	CandidateKeyword CandidateType = "KEYWORD"
	CandidateEntity  CandidateType = "ENTITY"
)

type ElementTypeHint string

const (
	HintRegex       ElementTypeHint = "REGEX"
	HintKeywordList ElementTypeHint = "KEYWORD_LIST"
	HintDictionary  ElementTypeHint = "DICTIONARY"
)

// Evidence is one context window where a candidate was seen.
type Evidence struct {
	Context    string  `json:"context"`
	Position   int     `json:"position"`
	Confidence float64 `json:"confidence"`
}

// CandidateItem is a discovered proposal before it is tied to a scan.
type CandidateItem struct {
	Type            CandidateType          `json:"candidate_type"`
	ElementTypeHint ElementTypeHint        `json:"element_type_hint"`
	Value           string                 `json:"value"`
	PatternTemplate *string                `json:"pattern_template,omitempty"`
	Frequency       int                    `json:"frequency"`
	Confidence      float64                `json:"confidence"`
	Score           float64                `json:"score"`
	Evidence        []Evidence             `json:"evidence"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// Candidate is the persisted form of a CandidateItem for one scan.
type Candidate struct {
	ID                string                        `gorm:"primaryKey;size:36" json:"candidate_id"`
	ScanID            string                        `gorm:"size:36;not null;index" json:"scan_id"`
	CandidateType     CandidateType                 `gorm:"size:50;not null" json:"candidate_type"`
	ElementTypeHint   ElementTypeHint               `gorm:"size:50;not null" json:"element_type_hint"`
	Value             string                        `gorm:"type:text;not null" json:"value"`
	PatternTemplate   *string                       `gorm:"size:500" json:"pattern_template,omitempty"`
	Frequency         int                           `gorm:"not null;default:1" json:"frequency"`
	DocumentFrequency int                           `gorm:"not null;default:1" json:"document_frequency"`
	Confidence        float64                       `gorm:"not null" json:"confidence"`
	Entropy           *float64                      `json:"entropy,omitempty"`
	Score             float64                       `gorm:"index" json:"score"`
	Evidence          datatypes.JSONSlice[Evidence] `json:"evidence"`
	Metadata          datatypes.JSONMap             `json:"metadata"`
	CreatedAt         time.Time                     `json:"created_at"`
}

func (Candidate) TableName() string { return "candidates" }

// CandidateFilter narrows a candidate listing.
type CandidateFilter struct {
	Type        CandidateType
	ElementHint ElementTypeHint
	MinScore    *float64
	Limit       int
	Offset      int
}
