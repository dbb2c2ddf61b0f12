package models

import (
	"math"
)

// Progress is the per-scan progress checkpoint. It is a value: callers build
// a new one with Advance and hand it to the owner to persist.
type Progress struct {
	Phase           string  `gorm:"size:32" json:"phase"`
	Pct             float64 `json:"progress_pct"`
	FilesTotal      int     `json:"files_total"`
	FilesCompleted  int     `json:"files_completed"`
	CurrentFileName string  `gorm:"size:500" json:"current_file_name,omitempty"`
}

// Advance returns a copy moved to the given phase and percentage. The
// percentage is clamped to [0, 100] and rounded to 2 decimals. An empty
// currentFile keeps the previous file name.
func (p Progress) Advance(phase string, pct float64, filesCompleted int, currentFile string) Progress {
	next := p
	next.Phase = phase
	next.Pct = math.Round(math.Max(0, math.Min(100, pct))*100) / 100
	next.FilesCompleted = filesCompleted
	if currentFile != "" {
		next.CurrentFileName = currentFile
	}
	return next
}

// Apportion maps the completion of done out of total items into the
// [start, start+span] progress band. Zero items count as complete.
func Apportion(start, span float64, done, total int) float64 {
	if total <= 0 {
		return start + span
	}
	return start + float64(done)/float64(total)*span
}
