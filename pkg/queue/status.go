package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

var ErrStatusNotCached = errors.New("status not cached")

// StatusCache keeps the latest scan snapshot in redis so progress readers do
// not hit the database on every poll.
type StatusCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStatusCache(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &StatusCache{redis: client, ttl: ttl}
}

func statusKey(scanID string) string {
	return fmt.Sprintf("scan_status:%s", scanID)
}

// Save 保存最新状态
func (c *StatusCache) Save(ctx context.Context, update models.ScanUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := c.redis.Set(ctx, statusKey(update.ScanID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// Get returns ErrStatusNotCached when redis holds nothing for the scan.
func (c *StatusCache) Get(ctx context.Context, scanID string) (*models.ScanUpdate, error) {
	data, err := c.redis.Get(ctx, statusKey(scanID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStatusNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	var update models.ScanUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &update, nil
}
