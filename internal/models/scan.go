package models

import (
	"time"

	"gorm.io/datatypes"
)

type ScanStatus string

const (
	ScanStatusPending    ScanStatus = "PENDING"
	ScanStatusExtracting ScanStatus = "EXTRACTING"
	ScanStatusExtracted  ScanStatus = "EXTRACTED"
	ScanStatusAnalyzing  ScanStatus = "ANALYZING"
	ScanStatusCompleted  ScanStatus = "COMPLETED"
	ScanStatusFailed     ScanStatus = "FAILED"
)

var scanStatusOrder = map[ScanStatus]int{
	ScanStatusPending:    0,
	ScanStatusExtracting: 1,
	ScanStatusExtracted:  2,
	ScanStatusAnalyzing:  3,
	ScanStatusCompleted:  4,
}

// IsTerminal reports whether no further transition is allowed.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed
}

// CanTransition reports whether s may move to next. Forward moves follow the
// pipeline order one step at a time; FAILED is reachable from any
// non-terminal state.
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == ScanStatusFailed {
		return true
	}
	from, ok := scanStatusOrder[s]
	if !ok {
		return false
	}
	to, ok := scanStatusOrder[next]
	return ok && to == from+1
}

type ScanType string

const (
	ScanTypeClassicNLP          ScanType = "classic_nlp"
	ScanTypeSentenceTransformer ScanType = "sentence_transformer"
)

func (t ScanType) Valid() bool {
	return t == ScanTypeClassicNLP || t == ScanTypeSentenceTransformer
}

// Progress phases.
const (
	PhaseQueued     = "queued"
	PhaseExtracting = "extracting"
	PhaseAnalyzing  = "analyzing"
	PhaseCompleted  = "completed"
	PhaseFailed     = "failed"
)

// ScanOptions are the caller choices captured when the scan is created.
type ScanOptions struct {
	UserPrincipalName string `gorm:"size:255" json:"user_principal_name,omitempty"`
	SitCategory       string `gorm:"size:255" json:"sit_category,omitempty"`
	PreserveCase      bool   `json:"preserve_case"`
	ForceOCR          bool   `json:"force_ocr"`
}

type Scan struct {
	ID                    string                      `gorm:"primaryKey;size:36" json:"scan_id"`
	Name                  string                      `gorm:"size:255" json:"name,omitempty"`
	ScanType              ScanType                    `gorm:"size:50;not null;default:classic_nlp" json:"scan_type"`
	Status                ScanStatus                  `gorm:"size:50;not null;default:PENDING;index" json:"status"`
	SourceFilesCount      int                         `json:"source_files_count"`
	TotalSizeBytes        int64                       `json:"total_size_bytes"`
	ExtractedTextLength   *int                        `json:"extracted_text_length,omitempty"`
	ExtractionDurationSec *float64                    `json:"extraction_duration_sec,omitempty"`
	AnalysisDurationSec   *float64                    `json:"analysis_duration_sec,omitempty"`
	OCRConfidenceAvg      *float64                    `gorm:"column:ocr_confidence_avg" json:"ocr_confidence_avg,omitempty"`
	ErrorMessage          *string                     `gorm:"type:text" json:"error_message,omitempty"`
	Options               ScanOptions                 `gorm:"embedded;embeddedPrefix:opt_" json:"options"`
	Progress              Progress                    `gorm:"embedded;embeddedPrefix:progress_" json:"progress"`
	FileTypes             datatypes.JSONSlice[string] `json:"file_types"`
	QualityFlags          datatypes.JSONSlice[string] `json:"quality_flags"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
	CompletedAt           *time.Time                  `json:"completed_at,omitempty"`
}

func (Scan) TableName() string { return "scans" }

type ScanFile struct {
	ID                    string           `gorm:"primaryKey;size:36" json:"file_id"`
	ScanID                string           `gorm:"size:36;not null;index" json:"scan_id"`
	Position              int              `gorm:"not null" json:"position"`
	FileName              string           `gorm:"size:500" json:"file_name"`
	FileType              string           `gorm:"size:100" json:"file_type,omitempty"`
	FileSizeBytes         int64            `json:"file_size_bytes"`
	BlobPath              string           `gorm:"size:1000" json:"-"`
	ExtractedTextBlobPath string           `gorm:"size:1000" json:"-"`
	ExtractionMethod      ExtractionMethod `gorm:"size:50" json:"extraction_method,omitempty"`
	ExtractionModule      string           `gorm:"size:100" json:"extraction_module,omitempty"`
	OCRPerformed          bool             `gorm:"column:ocr_performed" json:"ocr_performed"`
	OCRConfidence         *float64         `gorm:"column:ocr_confidence" json:"ocr_confidence,omitempty"`
	PageCount             *int             `json:"page_count,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
}

func (ScanFile) TableName() string { return "scan_files" }

// ScanUpdate is the snapshot pushed to progress subscribers.
type ScanUpdate struct {
	ScanID      string     `json:"scan_id"`
	Status      ScanStatus `json:"status,omitempty"`
	Phase       string     `json:"phase,omitempty"`
	ProgressPct float64    `json:"progress_pct"`
	Message     string     `json:"message"`
	Error       string     `json:"error,omitempty"`
	Final       bool       `json:"final"`
}

var statusMessages = map[ScanStatus]string{
	ScanStatusPending:    "Scan queued",
	ScanStatusExtracting: "Extracting content",
	ScanStatusExtracted:  "Extraction complete",
	ScanStatusAnalyzing:  "Generating candidates",
	ScanStatusCompleted:  "Scan complete",
	ScanStatusFailed:     "Scan failed",
}

// Update builds the subscriber snapshot for the scan's current state.
func (s *Scan) Update() ScanUpdate {
	msg, ok := statusMessages[s.Status]
	if !ok {
		msg = "Unknown"
	}
	u := ScanUpdate{
		ScanID:      s.ID,
		Status:      s.Status,
		Phase:       s.Progress.Phase,
		ProgressPct: s.Progress.Pct,
		Message:     msg,
		Final:       s.Status.IsTerminal(),
	}
	if s.Progress.CurrentFileName != "" && !u.Final {
		u.Message = msg + ": " + s.Progress.CurrentFileName
	}
	if s.ErrorMessage != nil {
		u.Error = *s.ErrorMessage
	}
	return u
}
