package events

import (
	"context"
	"time"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

// Event types published on scan state changes.
const (
	TypeScanProgress  = "scan.progress"
	TypeScanCompleted = "scan.completed"
	TypeScanFailed    = "scan.failed"
)

// Event defines the contract for all published events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string               { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }

// Publisher sends events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// ScanEvent builds the event for a scan snapshot. Terminal snapshots get
// their own type so consumers can subscribe to completions only.
func ScanEvent(u models.ScanUpdate) Event {
	typ := TypeScanProgress
	switch u.Status {
	case models.ScanStatusCompleted:
		typ = TypeScanCompleted
	case models.ScanStatusFailed:
		typ = TypeScanFailed
	}
	data := map[string]interface{}{
		"scan_id":      u.ScanID,
		"status":       string(u.Status),
		"phase":        u.Phase,
		"progress_pct": u.ProgressPct,
		"message":      u.Message,
	}
	if u.Error != "" {
		data["error"] = u.Error
	}
	return BaseEvent{Type: typ, Data: data, OccurredAt: time.Now().UTC()}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close()                               {}
