package candidate

import (
	"context"
	"sort"
	"strings"

	"github.com/feichai0017/sit-pipeline/internal/models"
	"github.com/feichai0017/sit-pipeline/pkg/logger"
)

// Miner turns plain text into scored, deduplicated candidates.
type Miner struct {
	logger   logger.Logger
	entities EntityExtractor
}

func NewMiner(log logger.Logger, entities EntityExtractor) *Miner {
	if entities == nil {
		entities = NoopEntityExtractor{}
	}
	return &Miner{
		logger:   log.Named("miner"),
		entities: entities,
	}
}

// Discover runs the regex, keyword and entity sources over text, keeps the
// higher-scoring entry per (type, lowercase value) and sorts by score
// descending. Entity extraction failures are logged and skipped.
func (m *Miner) Discover(ctx context.Context, text string) []models.CandidateItem {
	pooled := regexCandidates(text)
	pooled = append(pooled, keywordCandidates(text)...)

	entities, err := m.entities.ExtractEntities(ctx, text)
	if err != nil {
		m.logger.Warn("Entity source unavailable",
			logger.String("source", m.entities.Name()),
			logger.Error(err),
		)
	} else if len(entities) > 0 {
		pooled = append(pooled, entityCandidates(text, entities, m.entities.Name())...)
	}

	return Dedupe(pooled)
}

type dedupKey struct {
	typ   models.CandidateType
	value string
}

// Dedupe keeps one item per (type, lowercase value): the first one seen
// unless a later one scores strictly higher. The result is sorted by score
// descending.
func Dedupe(items []models.CandidateItem) []models.CandidateItem {
	index := make(map[dedupKey]int, len(items))
	out := make([]models.CandidateItem, 0, len(items))
	for _, item := range items {
		key := dedupKey{typ: item.Type, value: strings.ToLower(item.Value)}
		if i, ok := index[key]; ok {
			if item.Score > out[i].Score {
				out[i] = item
			}
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
