package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/feichai0017/sit-pipeline/internal/agent/document"
	"github.com/feichai0017/sit-pipeline/internal/agent/phrase"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/pkg/converters"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
	"github.com/feichai0017/sit-pipeline/pkg/storage"
)

const (
	extractionStart = 0.0
	extractionSpan  = 70.0
	analysisStart   = 70.0
	analysisSpan    = 30.0

	highOCRConfidence = 0.9
	flagHighOCR       = "high_ocr_confidence"
)

// Extractor turns one stored file into text. It never fails; degraded
// extractions are reported through the result metadata.
type Extractor interface {
	Extract(ctx context.Context, path, contentType string, forceOCR bool) models.ExtractionResult
}

// CandidateMiner proposes candidates from extracted text.
type CandidateMiner interface {
	Discover(ctx context.Context, text string) []models.CandidateItem
}

// Orchestrator drives a scan from PENDING to a terminal state.
type Orchestrator struct {
	repo      repository.ScanRepository
	store     storage.Storage
	extractor Extractor
	miner     CandidateMiner
	scorer    phrase.Scorer
	notifier  Notifier
	logger    logger.Logger
}

// NewOrchestrator builds an orchestrator. scorer may be nil, in which case
// sentence_transformer scans fail with ErrScorerUnavailable.
func NewOrchestrator(
	repo repository.ScanRepository,
	store storage.Storage,
	extractor Extractor,
	miner CandidateMiner,
	scorer phrase.Scorer,
	notifier Notifier,
	log logger.Logger,
) *Orchestrator {
	if notifier == nil {
		notifier = Notifiers{}
	}
	return &Orchestrator{
		repo:      repo,
		store:     store,
		extractor: extractor,
		miner:     miner,
		scorer:    scorer,
		notifier:  notifier,
		logger:    log.Named("orchestrator"),
	}
}

// run is the state of one scan execution.
type run struct {
	*Orchestrator
	scan   *models.Scan
	files  []models.ScanFile
	texts  []string
	job    Job
	logger logger.Logger

	// last status written to the repository
	persisted models.ScanStatus
}

// Run executes the scan named by job. Any error after the scan was loaded
// leaves it FAILED and is returned to the caller.
func (o *Orchestrator) Run(ctx context.Context, job Job) (err error) {
	scan, err := o.repo.GetScan(ctx, job.ScanID)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrScanNotFound, job.ScanID)
	}
	if err != nil {
		return err
	}
	if scan.Status != models.ScanStatusPending {
		return fmt.Errorf("%w: %s is %s", ErrScanNotPending, scan.ID, scan.Status)
	}
	files, err := o.repo.ListFiles(ctx, scan.ID)
	if err != nil {
		return err
	}

	r := &run{
		Orchestrator: o,
		scan:         scan,
		files:        files,
		job:          job,
		logger:       o.logger.With(logger.ScanID(scan.ID)),
		persisted:    scan.Status,
	}
	defer func() {
		if err != nil {
			r.fail(ctx, err)
		}
	}()

	r.logger.Info("Scan started",
		logger.String("scanType", string(scan.ScanType)),
		logger.Int("files", len(files)),
	)
	if err = r.extract(ctx); err != nil {
		return err
	}
	if err = r.analyze(ctx); err != nil {
		return err
	}
	return r.complete(ctx)
}

// setProgress is the single place a scan's status and progress change. Every
// change is persisted and pushed to the notifier; a change that fails to
// persist is rolled back.
func (r *run) setProgress(ctx context.Context, status models.ScanStatus, phase string, pct float64, done int, file string) error {
	prevStatus, prevProgress := r.scan.Status, r.scan.Progress
	if status != r.scan.Status {
		if !r.scan.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.scan.Status, status)
		}
		r.scan.Status = status
	}
	r.scan.Progress = r.scan.Progress.Advance(phase, pct, done, file)
	if err := r.repo.SaveScan(ctx, r.scan); err != nil {
		r.scan.Status, r.scan.Progress = prevStatus, prevProgress
		return fmt.Errorf("failed to persist scan progress: %w", err)
	}
	r.persisted = r.scan.Status
	r.notifier.Notify(ctx, r.scan.Update())
	return nil
}

func (r *run) extract(ctx context.Context) error {
	n := len(r.files)
	started := time.Now()
	if err := r.setProgress(ctx, models.ScanStatusExtracting, models.PhaseExtracting, extractionStart, 0, ""); err != nil {
		return err
	}

	for i := range r.files {
		f := &r.files[i]
		if err := r.setProgress(ctx, models.ScanStatusExtracting, models.PhaseExtracting,
			models.Apportion(extractionStart, extractionSpan, i, n), i, f.FileName); err != nil {
			return err
		}
		if err := r.extractFile(ctx, f); err != nil {
			return fmt.Errorf("extraction of %s failed: %w", f.FileName, err)
		}
		if err := r.setProgress(ctx, models.ScanStatusExtracting, models.PhaseExtracting,
			models.Apportion(extractionStart, extractionSpan, i+1, n), i+1, f.FileName); err != nil {
			return err
		}
	}

	var nonEmpty []string
	for _, t := range r.texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	length := utf8.RuneCountInString(strings.Join(nonEmpty, "\n\n"))
	elapsed := round2(time.Since(started).Seconds())
	r.scan.ExtractedTextLength = &length
	r.scan.ExtractionDurationSec = &elapsed

	r.logger.Info("Extraction finished",
		logger.Int("textLength", length),
		logger.Float64("durationSec", elapsed),
	)
	if err := r.setProgress(ctx, models.ScanStatusExtracted, models.PhaseExtracting,
		extractionStart+extractionSpan, n, ""); err != nil {
		return err
	}
	return r.setProgress(ctx, models.ScanStatusAnalyzing, models.PhaseAnalyzing, analysisStart, 0, "")
}

// extractFile extracts one upload and records the result. An unreadable
// upload degrades to empty text; only artifact and persistence errors fail
// the scan.
func (r *run) extractFile(ctx context.Context, f *models.ScanFile) error {
	var res models.ExtractionResult
	path, cleanup, err := storage.Materialize(ctx, r.store, f.BlobPath)
	if err != nil {
		r.logger.Warn("Upload unreadable, continuing with empty text",
			logger.FileID(f.ID),
			logger.FileName(f.FileName),
			logger.Error(err),
		)
		res = unreadable(err, r.scan.Options.ForceOCR)
	} else {
		defer cleanup()
		res = r.extractor.Extract(ctx, path, f.FileType, r.scan.Options.ForceOCR)
	}

	artifact, err := r.store.Write(ctx, "artifacts/"+r.scan.ID, f.ID+".txt", []byte(res.Text))
	if err != nil {
		return fmt.Errorf("failed to store text artifact: %w", err)
	}
	f.ExtractedTextBlobPath = artifact
	f.ExtractionMethod = res.Method
	f.ExtractionModule = res.Module()
	f.OCRPerformed = res.OCRPerformed()
	f.OCRConfidence = res.OCRConfidence
	f.PageCount = res.PageCount
	if err := r.repo.SaveFile(ctx, f); err != nil {
		return fmt.Errorf("failed to persist file: %w", err)
	}

	r.texts = append(r.texts, res.Text)
	r.logger.Debug("File extracted",
		logger.FileID(f.ID),
		logger.FileName(f.FileName),
		logger.String("method", string(res.Method)),
		logger.String("module", f.ExtractionModule),
		logger.Int("textLength", len(res.Text)),
	)
	return nil
}

func unreadable(err error, forceOCR bool) models.ExtractionResult {
	return models.ExtractionResult{
		Method: models.ExtractionNative,
		Metadata: map[string]interface{}{
			models.MetaModule:            document.ModuleFallback,
			models.MetaOCRPerformed:      false,
			models.MetaForceOCRRequested: forceOCR,
			models.MetaError:             err.Error(),
		},
	}
}

func (r *run) analyze(ctx context.Context) error {
	started := time.Now()

	if r.scan.ScanType == models.ScanTypeSentenceTransformer {
		if r.scan.Options.UserPrincipalName == "" || r.job.AccessToken == "" {
			return fmt.Errorf("%w: sentence_transformer scans need user_principal_name and exchange_access_token", ErrMissingCredential)
		}
		if r.scorer == nil {
			return ErrScorerUnavailable
		}
	}

	n := len(r.files)
	var candidates []models.Candidate
	for i := range r.files {
		f := &r.files[i]
		if err := r.setProgress(ctx, models.ScanStatusAnalyzing, models.PhaseAnalyzing,
			models.Apportion(analysisStart, analysisSpan, i, n), i, f.FileName); err != nil {
			return err
		}

		var found []models.Candidate
		var err error
		if r.scan.ScanType == models.ScanTypeSentenceTransformer {
			found, err = r.scoreFile(ctx, f)
		} else {
			found = r.mineFile(ctx, f, r.texts[i])
		}
		if err != nil {
			return fmt.Errorf("analysis of %s failed: %w", f.FileName, err)
		}
		candidates = append(candidates, found...)

		if err := r.setProgress(ctx, models.ScanStatusAnalyzing, models.PhaseAnalyzing,
			models.Apportion(analysisStart, analysisSpan, i+1, n), i+1, f.FileName); err != nil {
			return err
		}
	}

	if err := r.repo.ReplaceCandidates(ctx, r.scan.ID, candidates); err != nil {
		return err
	}
	elapsed := round2(time.Since(started).Seconds())
	r.scan.AnalysisDurationSec = &elapsed
	r.logger.Info("Analysis finished",
		logger.Int("candidates", len(candidates)),
		logger.Float64("durationSec", elapsed),
	)
	return nil
}

func (r *run) mineFile(ctx context.Context, f *models.ScanFile, text string) []models.Candidate {
	if text == "" {
		return nil
	}
	fc := r.fileContext(f)
	items := r.miner.Discover(ctx, text)
	out := make([]models.Candidate, 0, len(items))
	for _, item := range items {
		out = append(out, converters.ItemToCandidate(r.scan.ID, item, fc))
	}
	return out
}

// scoreFile hands the original upload, not the text artifact, to the scorer.
func (r *run) scoreFile(ctx context.Context, f *models.ScanFile) ([]models.Candidate, error) {
	path, cleanup, err := storage.Materialize(ctx, r.store, f.BlobPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	scores, err := r.scorer.ScorePhrases(ctx, phrase.Request{
		FilePath:          path,
		UserPrincipalName: r.scan.Options.UserPrincipalName,
		AccessToken:       r.job.AccessToken,
		Organization:      r.job.Organization,
		PreserveCase:      r.scan.Options.PreserveCase,
	})
	if err != nil {
		return nil, err
	}
	fc := r.fileContext(f)
	out := make([]models.Candidate, 0, len(scores))
	for _, s := range scores {
		out = append(out, converters.PhraseToCandidate(r.scan.ID, s.StreamName, s.Phrase, s.Score, fc))
	}
	return out, nil
}

func (r *run) fileContext(f *models.ScanFile) converters.FileContext {
	name := f.FileName
	if name == "" {
		name = filepath.Base(f.BlobPath)
	}
	if name == "" || name == "." {
		name = "Unknown file"
	}
	return converters.FileContext{
		FileName:         name,
		SitCategory:      r.scan.Options.SitCategory,
		ExtractionMethod: f.ExtractionMethod,
		ExtractionModule: f.ExtractionModule,
		OCRPerformed:     f.OCRPerformed,
	}
}

func (r *run) complete(ctx context.Context) error {
	now := time.Now().UTC()
	r.scan.CompletedAt = &now

	var sum float64
	var count int
	types := map[string]struct{}{}
	for _, f := range r.files {
		if f.OCRConfidence != nil {
			sum += *f.OCRConfidence
			count++
		}
		if f.FileType != "" {
			types[f.FileType] = struct{}{}
		}
	}
	flags := []string{}
	if count > 0 {
		avg := sum / float64(count)
		r.scan.OCRConfidenceAvg = &avg
		if avg >= highOCRConfidence {
			flags = append(flags, flagHighOCR)
		}
	}
	fileTypes := make([]string, 0, len(types))
	for t := range types {
		fileTypes = append(fileTypes, t)
	}
	sort.Strings(fileTypes)
	r.scan.FileTypes = fileTypes
	r.scan.QualityFlags = flags

	if err := r.setProgress(ctx, models.ScanStatusCompleted, models.PhaseCompleted, 100, len(r.files), ""); err != nil {
		return err
	}
	r.logger.Info("Scan completed")
	return nil
}

// fail records cause on the scan. The original error is what Run returns, so
// a failure here is only logged.
func (r *run) fail(ctx context.Context, cause error) {
	// 即使任务上下文已取消也要写入失败状态
	ctx = context.WithoutCancel(ctx)

	if r.persisted.IsTerminal() {
		return
	}
	msg := cause.Error()
	now := time.Now().UTC()
	r.scan.ErrorMessage = &msg
	r.scan.CompletedAt = &now
	if err := r.setProgress(ctx, models.ScanStatusFailed, models.PhaseFailed, 100, r.scan.Progress.FilesCompleted, ""); err != nil {
		r.logger.Error("Failed to record scan failure", logger.Error(err))
	}
	r.logger.Error("Scan failed", logger.Error(cause))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
