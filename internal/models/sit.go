package models

import (
	"time"
)

type SitStatus string

const (
	SitStatusDraft     SitStatus = "DRAFT"
	SitStatusPublished SitStatus = "PUBLISHED"
	SitStatusArchived  SitStatus = "ARCHIVED"
)

type ElementRole string

const (
	RolePrimary    ElementRole = "PRIMARY"
	RoleSupporting ElementRole = "SUPPORTING"
)

type ElementType string

const (
	ElementRegex       ElementType = "REGEX"
	ElementKeywordList ElementType = "KEYWORD_LIST"
	ElementDictionary  ElementType = "DICTIONARY"
	ElementFunction    ElementType = "FUNCTION"
)

type LogicType string

const (
	LogicAnd       LogicType = "AND"
	LogicOr        LogicType = "OR"
	LogicThreshold LogicType = "THRESHOLD"
)

type FilterKind string

const (
	FilterInclude FilterKind = "INCLUDE"
	FilterExclude FilterKind = "EXCLUDE"
)

// Allowed SIT confidence levels.
const (
	ConfidenceLow    = 75
	ConfidenceMedium = 85
	ConfidenceHigh   = 95
)

// DefaultProximityWindow is the group proximity window when none is given.
const DefaultProximityWindow = 300

func ValidConfidenceLevel(level int) bool {
	return level == ConfidenceLow || level == ConfidenceMedium || level == ConfidenceHigh
}

type SitDefinition struct {
	ID              string     `gorm:"primaryKey;size:36" json:"sit_id"`
	Name            string     `gorm:"size:255;not null" json:"name"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	ConfidenceLevel int        `gorm:"not null;default:85" json:"confidence_level"`
	Status          SitStatus  `gorm:"size:50;not null;default:DRAFT" json:"status"`
	Version         int        `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

func (SitDefinition) TableName() string { return "sit_definitions" }

type SitElement struct {
	ID               string      `gorm:"primaryKey;size:36" json:"element_id"`
	SitID            string      `gorm:"size:36;not null;index" json:"sit_id"`
	Role             ElementRole `gorm:"size:50;not null" json:"element_role"`
	Type             ElementType `gorm:"size:50;not null" json:"element_type"`
	Pattern          *string     `gorm:"type:text" json:"pattern,omitempty"`
	CaseSensitive    bool        `gorm:"not null;default:false" json:"case_sensitive"`
	WordBoundary     bool        `gorm:"not null" json:"word_boundary"`
	ChecksumFunction string      `gorm:"size:100" json:"checksum_function,omitempty"`
	MinMatches       int         `gorm:"not null;default:1" json:"min_matches"`
	MaxMatches       *int        `json:"max_matches,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

func (SitElement) TableName() string { return "sit_elements" }

type SitElementGroup struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"group_id"`
	SitID                string    `gorm:"size:36;not null;index" json:"sit_id"`
	Name                 string    `gorm:"size:255" json:"group_name"`
	Logic                LogicType `gorm:"size:50;not null;default:AND" json:"logic_type"`
	ThresholdCount       *int      `json:"threshold_count,omitempty"`
	ProximityWindowChars int       `gorm:"not null" json:"proximity_window_chars"`
	CreatedAt            time.Time `json:"created_at"`
}

func (SitElementGroup) TableName() string { return "sit_element_groups" }

// SitGroupElement links a group to one member element.
type SitGroupElement struct {
	GroupID   string `gorm:"primaryKey;size:36" json:"group_id"`
	ElementID string `gorm:"primaryKey;size:36" json:"element_id"`
}

func (SitGroupElement) TableName() string { return "sit_group_elements" }

type SitFilter struct {
	ID          string     `gorm:"primaryKey;size:36" json:"filter_id"`
	SitID       string     `gorm:"size:36;not null;index" json:"sit_id"`
	Kind        FilterKind `gorm:"size:50;not null" json:"filter_type"`
	Pattern     string     `gorm:"type:text;not null" json:"pattern"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (SitFilter) TableName() string { return "sit_filters" }

// SitBundle is a SIT definition with everything the matcher needs.
type SitBundle struct {
	Sit      SitDefinition
	Elements []SitElement
	Groups   []SitElementGroup
	Links    []SitGroupElement
	Filters  []SitFilter
}

type MatchedElement struct {
	ElementID string      `json:"element_id"`
	Role      ElementRole `json:"element_role"`
}

type MatchedGroup struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name"`
}

// SitMatch is one emitted match of a SIT against sample text.
type SitMatch struct {
	Value           string           `json:"value"`
	Position        int              `json:"position"`
	Confidence      int              `json:"confidence"`
	MatchedElements []MatchedElement `json:"matched_elements"`
	MatchedGroups   []MatchedGroup   `json:"matched_groups"`
}
