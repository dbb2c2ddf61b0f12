package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

const (
	DefaultCandidateLimit = 50
	MaxCandidateLimit     = 200
)

type ScanRepository interface {
	CreateScan(ctx context.Context, scan *models.Scan, files []models.ScanFile) error
	GetScan(ctx context.Context, id string) (*models.Scan, error)
	SaveScan(ctx context.Context, scan *models.Scan) error
	ListFiles(ctx context.Context, scanID string) ([]models.ScanFile, error)
	SaveFile(ctx context.Context, file *models.ScanFile) error
	// ReplaceCandidates swaps the scan's candidate set in one transaction.
	ReplaceCandidates(ctx context.Context, scanID string, candidates []models.Candidate) error
	ListCandidates(ctx context.Context, scanID string, filter models.CandidateFilter) ([]models.Candidate, int64, error)
}

type scanRepository struct {
	db *gorm.DB
}

func NewScanRepository(db *gorm.DB) ScanRepository {
	return &scanRepository{db: db}
}

func (r *scanRepository) CreateScan(ctx context.Context, scan *models.Scan, files []models.ScanFile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(scan).Error; err != nil {
			return fmt.Errorf("failed to create scan: %w", err)
		}
		if len(files) == 0 {
			return nil
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("failed to create scan files: %w", err)
		}
		return nil
	})
}

func (r *scanRepository) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	var scan models.Scan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&scan).Error; err != nil {
		return nil, notFound(err)
	}
	return &scan, nil
}

func (r *scanRepository) SaveScan(ctx context.Context, scan *models.Scan) error {
	return r.db.WithContext(ctx).Save(scan).Error
}

func (r *scanRepository) ListFiles(ctx context.Context, scanID string) ([]models.ScanFile, error) {
	var files []models.ScanFile
	err := r.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("position ASC").
		Find(&files).Error
	return files, err
}

func (r *scanRepository) SaveFile(ctx context.Context, file *models.ScanFile) error {
	return r.db.WithContext(ctx).Save(file).Error
}

func (r *scanRepository) ReplaceCandidates(ctx context.Context, scanID string, candidates []models.Candidate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_id = ?", scanID).Delete(&models.Candidate{}).Error; err != nil {
			return fmt.Errorf("failed to clear candidates: %w", err)
		}
		if len(candidates) == 0 {
			return nil
		}
		for i := range candidates {
			candidates[i].ScanID = scanID
		}
		if err := tx.CreateInBatches(&candidates, 200).Error; err != nil {
			return fmt.Errorf("failed to insert candidates: %w", err)
		}
		return nil
	})
}

func (r *scanRepository) ListCandidates(ctx context.Context, scanID string, filter models.CandidateFilter) ([]models.Candidate, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Candidate{}).Where("scan_id = ?", scanID)
	if filter.Type != "" {
		query = query.Where("candidate_type = ?", filter.Type)
	}
	if filter.ElementHint != "" {
		query = query.Where("element_type_hint = ?", filter.ElementHint)
	}
	if filter.MinScore != nil {
		query = query.Where("score >= ?", *filter.MinScore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	if limit > MaxCandidateLimit {
		limit = MaxCandidateLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var candidates []models.Candidate
	err := query.Order("score DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&candidates).Error
	return candidates, total, err
}
