package scan

import (
	"context"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/events"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
)

// Notifier receives every persisted scan snapshot. Delivery is best effort:
// a notifier failure never fails the scan.
type Notifier interface {
	Notify(ctx context.Context, update models.ScanUpdate)
}

// Notifiers fans one update out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, update models.ScanUpdate) {
	for _, n := range ns {
		n.Notify(ctx, update)
	}
}

// StatusReader returns the cached snapshot of a scan.
type StatusReader interface {
	Get(ctx context.Context, scanID string) (*models.ScanUpdate, error)
}

// CacheNotifier mirrors snapshots into the redis status cache.
type CacheNotifier struct {
	cache  *queue.StatusCache
	logger logger.Logger
}

func NewCacheNotifier(cache *queue.StatusCache, log logger.Logger) *CacheNotifier {
	return &CacheNotifier{cache: cache, logger: log}
}

func (n *CacheNotifier) Notify(ctx context.Context, update models.ScanUpdate) {
	if err := n.cache.Save(ctx, update); err != nil {
		n.logger.Warn("Failed to cache scan status",
			logger.ScanID(update.ScanID),
			logger.Error(err),
		)
	}
}

// EventNotifier publishes snapshots as scan lifecycle events.
type EventNotifier struct {
	publisher events.Publisher
	logger    logger.Logger
}

func NewEventNotifier(publisher events.Publisher, log logger.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, logger: log}
}

func (n *EventNotifier) Notify(ctx context.Context, update models.ScanUpdate) {
	if err := n.publisher.Publish(ctx, events.ScanEvent(update)); err != nil {
		n.logger.Warn("Failed to publish scan event",
			logger.ScanID(update.ScanID),
			logger.Error(err),
		)
	}
}
