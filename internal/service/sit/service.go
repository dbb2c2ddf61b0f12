// Package sit authors Sensitive Information Type definitions and tests them
// against sample text.
package sit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	rules "github.com/feichai0017/sit-pipeline/internal/agent/sit"
	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/internal/repository"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

type Service struct {
	repo   repository.SitRepository
	logger logger.Logger
}

func NewService(repo repository.SitRepository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log.Named("sit")}
}

type CreateRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	ConfidenceLevel int    `json:"confidence_level"`
}

// CreateSit stores a new DRAFT definition. A zero confidence level means
// medium (85).
func (s *Service) CreateSit(ctx context.Context, req CreateRequest) (*models.SitDefinition, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSit)
	}
	level := req.ConfidenceLevel
	if level == 0 {
		level = models.ConfidenceMedium
	}
	if !models.ValidConfidenceLevel(level) {
		return nil, fmt.Errorf("%w: confidence_level must be 75, 85 or 95", ErrInvalidSit)
	}

	def := &models.SitDefinition{
		ID:              uuid.New().String(),
		Name:            req.Name,
		Description:     req.Description,
		ConfidenceLevel: level,
		Status:          models.SitStatusDraft,
		Version:         1,
	}
	if err := s.repo.CreateSit(ctx, def); err != nil {
		return nil, fmt.Errorf("failed to create sit: %w", err)
	}
	s.logger.Info("SIT created", logger.SitID(def.ID), logger.String("name", def.Name))
	return def, nil
}

func (s *Service) GetSit(ctx context.Context, id string) (*models.SitBundle, error) {
	b, err := s.repo.LoadBundle(ctx, id)
	if errors.Is(err, repository.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSitNotFound, id)
	}
	return b, err
}

// draft loads the definition and refuses anything that is not a DRAFT.
func (s *Service) draft(ctx context.Context, id string) (*models.SitBundle, error) {
	b, err := s.GetSit(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Sit.Status != models.SitStatusDraft {
		return nil, fmt.Errorf("%w: %s is %s", ErrSitNotEditable, id, b.Sit.Status)
	}
	return b, nil
}

func (s *Service) AddElement(ctx context.Context, sitID string, spec rules.ElementSpec) (*models.SitElement, error) {
	if _, err := s.draft(ctx, sitID); err != nil {
		return nil, err
	}
	spec.ID = ""
	el, err := spec.Build(sitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSit, err)
	}
	if err := s.repo.AddElement(ctx, &el); err != nil {
		return nil, fmt.Errorf("failed to add element: %w", err)
	}
	return &el, nil
}

// AddGroup stores a group whose members must be elements of the same SIT.
func (s *Service) AddGroup(ctx context.Context, sitID string, spec rules.GroupSpec) (*models.SitElementGroup, error) {
	b, err := s.draft(ctx, sitID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(b.Elements))
	for _, el := range b.Elements {
		known[el.ID] = struct{}{}
	}
	for _, id := range spec.Elements {
		if _, ok := known[id]; !ok {
			return nil, fmt.Errorf("%w: element %s does not belong to sit %s", ErrInvalidSit, id, sitID)
		}
	}

	spec.ID = ""
	g, _, err := spec.Build(sitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSit, err)
	}
	if err := s.repo.AddGroup(ctx, &g, spec.Elements); err != nil {
		return nil, fmt.Errorf("failed to add group: %w", err)
	}
	return &g, nil
}

func (s *Service) AddFilter(ctx context.Context, sitID string, spec rules.FilterSpec) (*models.SitFilter, error) {
	if _, err := s.draft(ctx, sitID); err != nil {
		return nil, err
	}
	f, err := spec.Build(sitID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSit, err)
	}
	if err := s.repo.AddFilter(ctx, &f); err != nil {
		return nil, fmt.Errorf("failed to add filter: %w", err)
	}
	return &f, nil
}

// Publish freezes a DRAFT. A definition needs at least one primary element
// to be published.
func (s *Service) Publish(ctx context.Context, sitID string) (*models.SitDefinition, error) {
	b, err := s.draft(ctx, sitID)
	if err != nil {
		return nil, err
	}
	hasPrimary := false
	for _, el := range b.Elements {
		if el.Role == models.RolePrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return nil, fmt.Errorf("%w: at least one primary element is required", ErrInvalidSit)
	}

	now := time.Now().UTC()
	b.Sit.Status = models.SitStatusPublished
	b.Sit.PublishedAt = &now
	if err := s.repo.SaveSit(ctx, &b.Sit); err != nil {
		return nil, fmt.Errorf("failed to publish sit: %w", err)
	}
	s.logger.Info("SIT published", logger.SitID(sitID))
	return &b.Sit, nil
}

// TestSit matches a stored definition, in any status, against sample text.
func (s *Service) TestSit(ctx context.Context, sitID, text string) ([]models.SitMatch, error) {
	b, err := s.GetSit(ctx, sitID)
	if err != nil {
		return nil, err
	}
	matches, err := rules.MatchBundle(text, b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSit, err)
	}
	s.logger.Debug("SIT tested",
		logger.SitID(sitID),
		logger.Int("textLength", len(text)),
		logger.Int("matches", len(matches)),
	)
	return matches, nil
}

// Import loads a YAML definition and stores it as a new DRAFT. Ids from the
// file only link groups to elements; stored ids are always fresh.
func (s *Service) Import(ctx context.Context, r io.Reader) (*models.SitBundle, error) {
	b, err := rules.Load(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSit, err)
	}
	if err := reassignIDs(b); err != nil {
		return nil, err
	}
	if err := s.repo.SaveBundle(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to import sit: %w", err)
	}
	s.logger.Info("SIT imported",
		logger.SitID(b.Sit.ID),
		logger.String("name", b.Sit.Name),
		logger.Int("elements", len(b.Elements)),
		logger.Int("groups", len(b.Groups)),
	)
	return b, nil
}

func reassignIDs(b *models.SitBundle) error {
	elements := make(map[string]string, len(b.Elements))
	for i := range b.Elements {
		id := uuid.New().String()
		elements[b.Elements[i].ID] = id
		b.Elements[i].ID = id
	}
	groups := make(map[string]string, len(b.Groups))
	for i := range b.Groups {
		id := uuid.New().String()
		groups[b.Groups[i].ID] = id
		b.Groups[i].ID = id
	}

	links := make([]models.SitGroupElement, 0, len(b.Links))
	seen := map[models.SitGroupElement]struct{}{}
	for _, l := range b.Links {
		el, ok := elements[l.ElementID]
		if !ok {
			return fmt.Errorf("%w: group references unknown element %q", ErrInvalidSit, l.ElementID)
		}
		link := models.SitGroupElement{GroupID: groups[l.GroupID], ElementID: el}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	b.Links = links
	return nil
}
