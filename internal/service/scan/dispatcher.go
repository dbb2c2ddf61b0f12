package scan

import (
	"context"
	"fmt"
	"sync"

	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
)

// Job is the payload handed from scan creation to the worker. The Exchange
// credentials travel with the job and are never persisted.
type Job struct {
	ScanID       string `json:"scan_id"`
	AccessToken  string `json:"exchange_access_token,omitempty"`
	Organization string `json:"exchange_organization,omitempty"`
}

// Runner executes one scan to a terminal state.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// Dispatcher hands a persisted scan to whatever runs it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// QueueDispatcher enqueues scans on the asynq task queue for cmd/worker.
type QueueDispatcher struct {
	queue queue.Queue
}

func NewQueueDispatcher(q queue.Queue) *QueueDispatcher {
	return &QueueDispatcher{queue: q}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job Job) error {
	task, err := queue.NewTask(job.ScanID, queue.TaskTypeScanProcess, job)
	if err != nil {
		return err
	}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("failed to enqueue scan %s: %w", job.ScanID, err)
	}
	return nil
}

// LocalDispatcher runs scans in-process on their own goroutine. It is used
// when no redis is configured and by tests.
type LocalDispatcher struct {
	runner Runner
	logger logger.Logger
	wg     sync.WaitGroup
}

func NewLocalDispatcher(runner Runner, log logger.Logger) *LocalDispatcher {
	return &LocalDispatcher{runner: runner, logger: log.Named("dispatcher")}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job Job) error {
	// the scan outlives the request that created it
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.runner.Run(runCtx, job); err != nil {
			d.logger.Error("Scan run failed",
				logger.ScanID(job.ScanID),
				logger.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until every dispatched scan has returned.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
