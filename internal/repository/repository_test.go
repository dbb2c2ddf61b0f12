package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cfg "github.com/feichai0017/sit-pipeline/config"
	"github.com/feichai0017/sit-pipeline/internal/models"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewMemoryDB(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedScan(t *testing.T, repo ScanRepository, files ...string) *models.Scan {
	t.Helper()
	scan := &models.Scan{
		ID:               uuid.New().String(),
		Name:             "quarterly",
		ScanType:         models.ScanTypeClassicNLP,
		Status:           models.ScanStatusPending,
		SourceFilesCount: len(files),
		Options:          models.ScanOptions{SitCategory: "HR", ForceOCR: true},
		Progress:         models.Progress{Phase: models.PhaseQueued, FilesTotal: len(files)},
	}
	var rows []models.ScanFile
	for i, name := range files {
		rows = append(rows, models.ScanFile{
			ID:       uuid.New().String(),
			ScanID:   scan.ID,
			Position: i,
			FileName: name,
		})
	}
	require.NoError(t, repo.CreateScan(context.Background(), scan, rows))
	return scan
}

func TestNewGormDBRejectsUnknownDriver(t *testing.T) {
	_, err := NewGormDB(&cfg.DatabaseConfig{Driver: "oracle"}, "silent")
	assert.Error(t, err)
}

func TestScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(newDB(t))
	scan := seedScan(t, repo, "b.pdf", "a.txt", "c.png")

	got, err := repo.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusPending, got.Status)
	assert.Equal(t, "HR", got.Options.SitCategory)
	assert.True(t, got.Options.ForceOCR)
	assert.Equal(t, 3, got.Progress.FilesTotal)

	files, err := repo.ListFiles(ctx, scan.ID)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"b.pdf", "a.txt", "c.png"}, []string{files[0].FileName, files[1].FileName, files[2].FileName})

	now := time.Now()
	msg := "boom"
	got.Status = models.ScanStatusFailed
	got.ErrorMessage = &msg
	got.CompletedAt = &now
	got.FileTypes = []string{"pdf", "txt"}
	got.Progress = got.Progress.Advance(models.PhaseFailed, 100, 1, "b.pdf")
	require.NoError(t, repo.SaveScan(ctx, got))

	again, err := repo.GetScan(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusFailed, again.Status)
	assert.Equal(t, "boom", *again.ErrorMessage)
	assert.NotNil(t, again.CompletedAt)
	assert.Equal(t, []string{"pdf", "txt"}, []string(again.FileTypes))
	assert.Equal(t, 100.0, again.Progress.Pct)

	pages := 4
	files[0].PageCount = &pages
	files[0].ExtractionMethod = models.ExtractionOCR
	require.NoError(t, repo.SaveFile(ctx, &files[0]))
	files, err = repo.ListFiles(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, *files[0].PageCount)
}

func TestGetScanNotFound(t *testing.T) {
	repo := NewScanRepository(newDB(t))
	_, err := repo.GetScan(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func candidate(typ models.CandidateType, hint models.ElementTypeHint, value string, score float64) models.Candidate {
	return models.Candidate{
		ID:              uuid.New().String(),
		CandidateType:   typ,
		ElementTypeHint: hint,
		Value:           value,
		Frequency:       1,
		Confidence:      0.5,
		Score:           score,
		Evidence:        []models.Evidence{{Context: value, Position: 0, Confidence: 0.5}},
		Metadata:        map[string]interface{}{"file_name": "a.txt"},
	}
}

func TestReplaceCandidatesKeepsOneGeneration(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(newDB(t))
	scan := seedScan(t, repo, "a.txt")

	gen := func() []models.Candidate {
		return []models.Candidate{
			candidate(models.CandidatePattern, models.HintRegex, "a@b.com", 61.5),
			candidate(models.CandidateKeyword, models.HintKeywordList, "payroll", 80),
		}
	}
	require.NoError(t, repo.ReplaceCandidates(ctx, scan.ID, gen()))
	require.NoError(t, repo.ReplaceCandidates(ctx, scan.ID, gen()))

	items, total, err := repo.ListCandidates(ctx, scan.ID, models.CandidateFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "payroll", items[0].Value)
	assert.Equal(t, "a.txt", items[0].Metadata["file_name"])
	assert.Len(t, items[1].Evidence, 1)

	require.NoError(t, repo.ReplaceCandidates(ctx, scan.ID, nil))
	_, total, err = repo.ListCandidates(ctx, scan.ID, models.CandidateFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestListCandidatesFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewScanRepository(newDB(t))
	scan := seedScan(t, repo)
	other := seedScan(t, repo)

	require.NoError(t, repo.ReplaceCandidates(ctx, scan.ID, []models.Candidate{
		candidate(models.CandidatePattern, models.HintRegex, "1", 90),
		candidate(models.CandidatePattern, models.HintRegex, "2", 40),
		candidate(models.CandidateKeyword, models.HintKeywordList, "3", 70),
		candidate(models.CandidateEntity, models.HintDictionary, "4", 10),
	}))
	require.NoError(t, repo.ReplaceCandidates(ctx, other.ID, []models.Candidate{
		candidate(models.CandidatePattern, models.HintRegex, "x", 99),
	}))

	minScore := 50.0
	tests := []struct {
		name   string
		filter models.CandidateFilter
		values []string
		total  int64
	}{
		{"all", models.CandidateFilter{}, []string{"1", "3", "2", "4"}, 4},
		{"type", models.CandidateFilter{Type: models.CandidatePattern}, []string{"1", "2"}, 2},
		{"hint", models.CandidateFilter{ElementHint: models.HintDictionary}, []string{"4"}, 1},
		{"min score", models.CandidateFilter{MinScore: &minScore}, []string{"1", "3"}, 2},
		{"page", models.CandidateFilter{Limit: 2, Offset: 1}, []string{"3", "2"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := repo.ListCandidates(ctx, scan.ID, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			var values []string
			for _, c := range items {
				values = append(values, c.Value)
			}
			assert.Equal(t, tt.values, values)
		})
	}
}

func TestSitRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSitRepository(newDB(t))

	sit := &models.SitDefinition{ID: uuid.New().String(), Name: "Employee", ConfidenceLevel: 85, Status: models.SitStatusDraft, Version: 1}
	require.NoError(t, repo.CreateSit(ctx, sit))

	pattern := `EMP-\d{6}`
	primary := &models.SitElement{ID: uuid.New().String(), SitID: sit.ID, Role: models.RolePrimary, Type: models.ElementRegex, Pattern: &pattern, MinMatches: 1}
	require.NoError(t, repo.AddElement(ctx, primary))
	terms := "badge"
	support := &models.SitElement{ID: uuid.New().String(), SitID: sit.ID, Role: models.RoleSupporting, Type: models.ElementKeywordList, Pattern: &terms, MinMatches: 1}
	require.NoError(t, repo.AddElement(ctx, support))

	group := &models.SitElementGroup{ID: uuid.New().String(), SitID: sit.ID, Name: "ctx", Logic: models.LogicOr, ProximityWindowChars: 0}
	require.NoError(t, repo.AddGroup(ctx, group, []string{support.ID, support.ID}))
	require.NoError(t, repo.AddFilter(ctx, &models.SitFilter{ID: uuid.New().String(), SitID: sit.ID, Kind: models.FilterExclude, Pattern: "0+"}))

	b, err := repo.LoadBundle(ctx, sit.ID)
	require.NoError(t, err)
	assert.Equal(t, "Employee", b.Sit.Name)
	require.Len(t, b.Elements, 2)
	assert.False(t, b.Elements[0].WordBoundary)
	require.Len(t, b.Groups, 1)
	assert.Equal(t, 0, b.Groups[0].ProximityWindowChars)
	assert.Equal(t, []models.SitGroupElement{{GroupID: group.ID, ElementID: support.ID}}, b.Links)
	assert.Len(t, b.Filters, 1)

	sit.Status = models.SitStatusPublished
	require.NoError(t, repo.SaveSit(ctx, sit))
	got, err := repo.GetSit(ctx, sit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SitStatusPublished, got.Status)

	_, err = repo.LoadBundle(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestSaveBundle(t *testing.T) {
	ctx := context.Background()
	repo := NewSitRepository(newDB(t))

	p := "x"
	b := &models.SitBundle{
		Sit:      models.SitDefinition{ID: uuid.New().String(), Name: "Imported", ConfidenceLevel: 75, Status: models.SitStatusDraft, Version: 1},
		Elements: []models.SitElement{{ID: "e1", Role: models.RolePrimary, Type: models.ElementRegex, Pattern: &p, WordBoundary: true, MinMatches: 1}},
		Groups:   []models.SitElementGroup{{ID: "g1", Logic: models.LogicAnd, ProximityWindowChars: 300}},
		Links:    []models.SitGroupElement{{GroupID: "g1", ElementID: "e1"}},
	}
	for i := range b.Elements {
		b.Elements[i].SitID = b.Sit.ID
	}
	b.Groups[0].SitID = b.Sit.ID
	require.NoError(t, repo.SaveBundle(ctx, b))

	got, err := repo.LoadBundle(ctx, b.Sit.ID)
	require.NoError(t, err)
	assert.Len(t, got.Elements, 1)
	assert.True(t, got.Elements[0].WordBoundary)
	assert.Len(t, got.Links, 1)
}
