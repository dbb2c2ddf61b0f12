package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

type SitRepository interface {
	CreateSit(ctx context.Context, sit *models.SitDefinition) error
	GetSit(ctx context.Context, id string) (*models.SitDefinition, error)
	SaveSit(ctx context.Context, sit *models.SitDefinition) error
	AddElement(ctx context.Context, el *models.SitElement) error
	// AddGroup stores the group together with its element links.
	AddGroup(ctx context.Context, group *models.SitElementGroup, elementIDs []string) error
	AddFilter(ctx context.Context, f *models.SitFilter) error
	LoadBundle(ctx context.Context, sitID string) (*models.SitBundle, error)
	SaveBundle(ctx context.Context, b *models.SitBundle) error
}

type sitRepository struct {
	db *gorm.DB
}

func NewSitRepository(db *gorm.DB) SitRepository {
	return &sitRepository{db: db}
}

func (r *sitRepository) CreateSit(ctx context.Context, sit *models.SitDefinition) error {
	return r.db.WithContext(ctx).Create(sit).Error
}

func (r *sitRepository) GetSit(ctx context.Context, id string) (*models.SitDefinition, error) {
	var sit models.SitDefinition
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sit).Error; err != nil {
		return nil, notFound(err)
	}
	return &sit, nil
}

func (r *sitRepository) SaveSit(ctx context.Context, sit *models.SitDefinition) error {
	return r.db.WithContext(ctx).Save(sit).Error
}

func (r *sitRepository) AddElement(ctx context.Context, el *models.SitElement) error {
	return r.db.WithContext(ctx).Create(el).Error
}

func (r *sitRepository) AddGroup(ctx context.Context, group *models.SitElementGroup, elementIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}
		return createLinks(tx, group.ID, elementIDs)
	})
}

func createLinks(tx *gorm.DB, groupID string, elementIDs []string) error {
	if len(elementIDs) == 0 {
		return nil
	}
	links := make([]models.SitGroupElement, 0, len(elementIDs))
	seen := make(map[string]struct{}, len(elementIDs))
	for _, id := range elementIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, models.SitGroupElement{GroupID: groupID, ElementID: id})
	}
	return tx.Create(&links).Error
}

func (r *sitRepository) AddFilter(ctx context.Context, f *models.SitFilter) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *sitRepository) LoadBundle(ctx context.Context, sitID string) (*models.SitBundle, error) {
	sit, err := r.GetSit(ctx, sitID)
	if err != nil {
		return nil, err
	}

	b := &models.SitBundle{Sit: *sit}
	db := r.db.WithContext(ctx)
	if err := db.Where("sit_id = ?", sitID).Order("created_at ASC").Find(&b.Elements).Error; err != nil {
		return nil, fmt.Errorf("failed to load elements: %w", err)
	}
	if err := db.Where("sit_id = ?", sitID).Order("created_at ASC").Find(&b.Groups).Error; err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	if len(b.Groups) > 0 {
		ids := make([]string, len(b.Groups))
		for i, g := range b.Groups {
			ids[i] = g.ID
		}
		if err := db.Where("group_id IN ?", ids).Find(&b.Links).Error; err != nil {
			return nil, fmt.Errorf("failed to load group links: %w", err)
		}
	}
	if err := db.Where("sit_id = ?", sitID).Order("created_at ASC").Find(&b.Filters).Error; err != nil {
		return nil, fmt.Errorf("failed to load filters: %w", err)
	}
	return b, nil
}

// SaveBundle inserts a whole definition, as produced by the YAML loader.
func (r *sitRepository) SaveBundle(ctx context.Context, b *models.SitBundle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b.Sit).Error; err != nil {
			return err
		}
		if len(b.Elements) > 0 {
			if err := tx.Create(&b.Elements).Error; err != nil {
				return err
			}
		}
		if len(b.Groups) > 0 {
			if err := tx.Create(&b.Groups).Error; err != nil {
				return err
			}
		}
		if len(b.Links) > 0 {
			if err := tx.Create(&b.Links).Error; err != nil {
				return err
			}
		}
		if len(b.Filters) > 0 {
			if err := tx.Create(&b.Filters).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
