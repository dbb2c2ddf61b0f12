// Package scan creates scans, runs them through extraction and analysis,
// and serves their progress and candidates.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/internal/utils/validator"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/queue"
	"github.com/feichai0017/sit-pipeline/pkg/storage"
)

const (
	DefaultWatchInterval = 2 * time.Second
	maxConcurrentStores  = 4
)

type Service struct {
	repo          repository.ScanRepository
	store         storage.Storage
	validator     *validator.UploadValidator
	dispatcher    Dispatcher
	status        StatusReader
	notifier      Notifier
	logger        logger.Logger
	watchInterval time.Duration
}

type ServiceConfig struct {
	WatchInterval time.Duration
}

// NewService wires the scan service. status and notifier may be nil.
func NewService(
	repo repository.ScanRepository,
	store storage.Storage,
	v *validator.UploadValidator,
	dispatcher Dispatcher,
	status StatusReader,
	notifier Notifier,
	log logger.Logger,
	cfg *ServiceConfig,
) *Service {
	interval := DefaultWatchInterval
	if cfg != nil && cfg.WatchInterval > 0 {
		interval = cfg.WatchInterval
	}
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &Service{
		repo:          repo,
		store:         store,
		validator:     v,
		dispatcher:    dispatcher,
		status:        status,
		notifier:      notifier,
		logger:        log.Named("scan"),
		watchInterval: interval,
	}
}

// SetDispatcher replaces the dispatcher. The local dispatcher needs an
// orchestrator that is built after the service.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// CreateScan validates the request, stores every upload, persists the scan in
// PENDING and dispatches it. Validation failures wrap
// validator.ErrInvalidUpload and leave nothing behind.
func (s *Service) CreateScan(ctx context.Context, req validator.ScanRequest, headers []*multipart.FileHeader) (*models.Scan, error) {
	if err := s.validator.ValidateScanRequest(&req); err != nil {
		return nil, err
	}
	results, err := s.validator.ValidateFiles(headers)
	if err != nil {
		return nil, err
	}

	scanID := uuid.New().String()
	scope := "uploads/" + scanID
	files := make([]models.ScanFile, len(headers))
	var total int64
	for i, h := range headers {
		files[i] = models.ScanFile{
			ID:            uuid.New().String(),
			ScanID:        scanID,
			Position:      i,
			FileName:      h.Filename,
			FileType:      results[i].FileInfo.ContentType,
			FileSizeBytes: h.Size,
		}
		total += h.Size
	}

	// 并发存储上传文件
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentStores)
	for i, h := range headers {
		g.Go(func() error {
			path, err := s.storeUpload(gctx, scope, fmt.Sprintf("%s_%s", files[i].ID[:8], h.Filename), h)
			if err != nil {
				return fmt.Errorf("failed to store %s: %w", h.Filename, err)
			}
			files[i].BlobPath = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(ctx, files)
		s.logger.Error("Failed to store uploads", logger.ScanID(scanID), logger.Error(err))
		return nil, err
	}

	scan := &models.Scan{
		ID:               scanID,
		Name:             req.Name,
		ScanType:         req.ScanType,
		Status:           models.ScanStatusPending,
		SourceFilesCount: len(files),
		TotalSizeBytes:   total,
		Options: models.ScanOptions{
			UserPrincipalName: req.UserPrincipalName,
			SitCategory:       req.SitCategory,
			PreserveCase:      req.PreserveCase,
			ForceOCR:          req.ForceOCR,
		},
		Progress: models.Progress{
			Phase:      models.PhaseQueued,
			FilesTotal: len(files),
		},
		FileTypes:    []string{},
		QualityFlags: []string{},
	}
	if err := s.repo.CreateScan(ctx, scan, files); err != nil {
		s.discard(ctx, files)
		return nil, err
	}
	s.notifier.Notify(ctx, scan.Update())

	job := Job{ScanID: scanID}
	if req.ScanType == models.ScanTypeSentenceTransformer {
		job.AccessToken = req.ExchangeAccessToken
		job.Organization = req.ExchangeOrganization
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.markFailed(ctx, scan, err)
		return nil, err
	}

	s.logger.Info("Scan created",
		logger.ScanID(scanID),
		logger.String("scanType", string(scan.ScanType)),
		logger.Int("files", len(files)),
		logger.Int64("totalBytes", total),
	)
	return scan, nil
}

func (s *Service) storeUpload(ctx context.Context, scope, name string, h *multipart.FileHeader) (string, error) {
	f, err := h.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return s.store.Write(ctx, scope, name, data)
}

func (s *Service) discard(ctx context.Context, files []models.ScanFile) {
	for _, f := range files {
		if f.BlobPath == "" {
			continue
		}
		if err := s.store.Delete(ctx, f.BlobPath); err != nil {
			s.logger.Warn("Failed to remove orphaned upload", logger.String("path", f.BlobPath), logger.Error(err))
		}
	}
}

func (s *Service) markFailed(ctx context.Context, scan *models.Scan, cause error) {
	msg := fmt.Sprintf("dispatch failed: %v", cause)
	now := time.Now().UTC()
	scan.Status = models.ScanStatusFailed
	scan.ErrorMessage = &msg
	scan.CompletedAt = &now
	scan.Progress = scan.Progress.Advance(models.PhaseFailed, 100, 0, "")
	if err := s.repo.SaveScan(ctx, scan); err != nil {
		s.logger.Error("Failed to mark scan failed", logger.ScanID(scan.ID), logger.Error(err))
		return
	}
	s.notifier.Notify(ctx, scan.Update())
}

func (s *Service) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	scan, err := s.repo.GetScan(ctx, id)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, id)
	}
	return scan, err
}

func (s *Service) ListFiles(ctx context.Context, id string) ([]models.ScanFile, error) {
	if _, err := s.GetScan(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListFiles(ctx, id)
}

// ListCandidates pages through a scan's candidates, best score first. The
// limit is clamped to [1, repository.MaxCandidateLimit].
func (s *Service) ListCandidates(ctx context.Context, id string, filter models.CandidateFilter) ([]models.Candidate, int64, error) {
	if _, err := s.GetScan(ctx, id); err != nil {
		return nil, 0, err
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = repository.DefaultCandidateLimit
	case filter.Limit > repository.MaxCandidateLimit:
		filter.Limit = repository.MaxCandidateLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListCandidates(ctx, id, filter)
}

// GetProgress returns the latest snapshot, preferring the status cache.
func (s *Service) GetProgress(ctx context.Context, id string) (models.ScanUpdate, error) {
	if s.status != nil {
		u, err := s.status.Get(ctx, id)
		if err == nil {
			return *u, nil
		}
		if !errors.Is(err, queue.ErrStatusNotCached) {
			s.logger.Debug("Status cache miss", logger.ScanID(id), logger.Error(err))
		}
	}
	scan, err := s.GetScan(ctx, id)
	if err != nil {
		return models.ScanUpdate{}, err
	}
	return scan.Update(), nil
}

// Watch streams snapshots of the scan until it reaches a terminal state or
// ctx ends. The final snapshot is always delivered before the channel
// closes; an unknown scan yields a single error update.
func (s *Service) Watch(ctx context.Context, id string) <-chan models.ScanUpdate {
	out := make(chan models.ScanUpdate, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		for {
			u, err := s.GetProgress(ctx, id)
			if err != nil {
				u = models.ScanUpdate{ScanID: id, Error: err.Error(), Message: "Scan not available", Final: true}
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
			if u.Final {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
