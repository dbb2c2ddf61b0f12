package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/sit-pipeline/internal/service/scan"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
)

// ScanWorker consumes scan:process tasks and runs each scan to a terminal
// state.
type ScanWorker struct {
	BaseWorker
	runner scan.Runner
}

func NewScanWorker(cfg *Config, runner scan.Runner, log logger.Logger) *ScanWorker {
	w := &ScanWorker{
		BaseWorker: newBaseWorker(cfg, log),
		runner:     runner,
	}

	// 注册任务处理器
	w.mux.HandleFunc(queue.TaskTypeScanProcess, w.HandleScanProcess)
	return w
}

// HandleScanProcess runs one scan. Failed scans are terminal, so errors are
// wrapped with asynq.SkipRetry.
func (w *ScanWorker) HandleScanProcess(ctx context.Context, t *asynq.Task) error {
	task, err := queue.ParseTask(t)
	if err != nil {
		w.logger.Error("Invalid task envelope", logger.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	var job scan.Job
	if err := task.Decode(&job); err != nil || job.ScanID == "" {
		w.logger.Error("Invalid scan task",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
		return fmt.Errorf("invalid scan task %s: %w", task.ID, asynq.SkipRetry)
	}

	w.logger.Info("Processing scan task",
		logger.String("taskId", task.ID),
		logger.ScanID(job.ScanID),
	)
	w.writeResult(t, fmt.Sprintf(`{"scan_id":%q,"status":"running"}`, job.ScanID))

	if err := w.runner.Run(ctx, job); err != nil {
		w.writeResult(t, fmt.Sprintf(`{"scan_id":%q,"status":"failed","error":%q}`, job.ScanID, err.Error()))
		return fmt.Errorf("scan %s: %v: %w", job.ScanID, err, asynq.SkipRetry)
	}

	w.writeResult(t, fmt.Sprintf(`{"scan_id":%q,"status":"completed"}`, job.ScanID))
	return nil
}

func (w *ScanWorker) writeResult(t *asynq.Task, payload string) {
	rw := t.ResultWriter()
	if rw == nil {
		return
	}
	if _, err := rw.Write([]byte(payload)); err != nil {
		w.logger.Warn("Failed to write task result", logger.Error(err))
	}
}
