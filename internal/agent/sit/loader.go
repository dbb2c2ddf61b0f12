package sit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

var ErrInvalidDefinition = errors.New("invalid sit definition")

// fileDefinition is the YAML layout of a SIT definition file.
type fileDefinition struct {
	Name            string        `yaml:"name"`
	Description     string        `yaml:"description"`
	ConfidenceLevel int           `yaml:"confidence_level"`
	Elements        []ElementSpec `yaml:"elements"`
	Groups          []GroupSpec   `yaml:"groups"`
	Filters         []FilterSpec  `yaml:"filters"`
}

// ElementSpec describes one element as authored in YAML or over the API.
// Terms, when given, replace Pattern with their JSON array encoding.
type ElementSpec struct {
	ID            string   `yaml:"id" json:"id,omitempty"`
	Role          string   `yaml:"role" json:"element_role"`
	Type          string   `yaml:"type" json:"element_type"`
	Pattern       string   `yaml:"pattern" json:"pattern,omitempty"`
	Terms         []string `yaml:"terms" json:"terms,omitempty"`
	CaseSensitive bool     `yaml:"case_sensitive" json:"case_sensitive"`
	WordBoundary  *bool    `yaml:"word_boundary" json:"word_boundary,omitempty"`
	MinMatches    int      `yaml:"min_matches" json:"min_matches,omitempty"`
	MaxMatches    *int     `yaml:"max_matches" json:"max_matches,omitempty"`
}

type GroupSpec struct {
	ID        string   `yaml:"id" json:"id,omitempty"`
	Name      string   `yaml:"name" json:"group_name"`
	Logic     string   `yaml:"logic" json:"logic_type"`
	Threshold *int     `yaml:"threshold" json:"threshold_count,omitempty"`
	Proximity *int     `yaml:"proximity" json:"proximity_window_chars,omitempty"`
	Elements  []string `yaml:"elements" json:"element_ids"`
}

type FilterSpec struct {
	Kind        string `yaml:"kind" json:"filter_type"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// LoadFile reads a YAML SIT definition from disk.
func LoadFile(path string) (*models.SitBundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open definition: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML SIT definition. Element and group ids are generated
// when absent; group element references use the ids given in the file.
func Load(r io.Reader) (*models.SitBundle, error) {
	var def fileDefinition
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	level := def.ConfidenceLevel
	if level == 0 {
		level = models.ConfidenceMedium
	}
	if !models.ValidConfidenceLevel(level) {
		return nil, fmt.Errorf("%w: confidence_level must be 75, 85 or 95", ErrInvalidDefinition)
	}

	b := &models.SitBundle{Sit: models.SitDefinition{
		ID:              uuid.New().String(),
		Name:            def.Name,
		Description:     def.Description,
		ConfidenceLevel: level,
		Status:          models.SitStatusDraft,
		Version:         1,
	}}

	for i, fe := range def.Elements {
		el, err := fe.Build(b.Sit.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidDefinition, i, err)
		}
		b.Elements = append(b.Elements, el)
	}

	for i, fg := range def.Groups {
		g, links, err := fg.Build(b.Sit.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: group %d: %v", ErrInvalidDefinition, i, err)
		}
		b.Groups = append(b.Groups, g)
		b.Links = append(b.Links, links...)
	}

	for i, ff := range def.Filters {
		f, err := ff.Build(b.Sit.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %d: %v", ErrInvalidDefinition, i, err)
		}
		b.Filters = append(b.Filters, f)
	}
	return b, nil
}

// Build validates the element and returns it bound to sitID.
func (fe ElementSpec) Build(sitID string) (models.SitElement, error) {
	role := models.ElementRole(strings.ToUpper(fe.Role))
	if role != models.RolePrimary && role != models.RoleSupporting {
		return models.SitElement{}, fmt.Errorf("unknown role %q", fe.Role)
	}
	typ := models.ElementType(strings.ToUpper(fe.Type))
	switch typ {
	case models.ElementRegex, models.ElementKeywordList, models.ElementDictionary, models.ElementFunction:
	default:
		return models.SitElement{}, fmt.Errorf("unknown type %q", fe.Type)
	}

	pattern := fe.Pattern
	if len(fe.Terms) > 0 {
		raw, err := json.Marshal(fe.Terms)
		if err != nil {
			return models.SitElement{}, err
		}
		pattern = string(raw)
	}

	if typ == models.ElementRegex {
		if pattern == "" {
			return models.SitElement{}, errors.New("regex element needs a pattern")
		}
		if _, err := patterns.compile(pattern, fe.CaseSensitive); err != nil {
			return models.SitElement{}, fmt.Errorf("pattern %q: %v", pattern, err)
		}
	}

	wordBoundary := true
	if fe.WordBoundary != nil {
		wordBoundary = *fe.WordBoundary
	}
	minMatches := fe.MinMatches
	if minMatches < 1 {
		minMatches = 1
	}
	id := fe.ID
	if id == "" {
		id = uuid.New().String()
	}

	el := models.SitElement{
		ID:            id,
		SitID:         sitID,
		Role:          role,
		Type:          typ,
		CaseSensitive: fe.CaseSensitive,
		WordBoundary:  wordBoundary,
		MinMatches:    minMatches,
		MaxMatches:    fe.MaxMatches,
	}
	if pattern != "" {
		el.Pattern = &pattern
	}
	return el, nil
}

// Build validates the group and returns it with its member links.
func (fg GroupSpec) Build(sitID string) (models.SitElementGroup, []models.SitGroupElement, error) {
	logic := models.LogicType(strings.ToUpper(fg.Logic))
	if logic == "" {
		logic = models.LogicAnd
	}
	if logic != models.LogicAnd && logic != models.LogicOr && logic != models.LogicThreshold {
		return models.SitElementGroup{}, nil, fmt.Errorf("unknown logic %q", fg.Logic)
	}
	if fg.Threshold != nil && *fg.Threshold < 1 {
		return models.SitElementGroup{}, nil, errors.New("threshold must be >= 1")
	}
	window := models.DefaultProximityWindow
	if fg.Proximity != nil {
		window = *fg.Proximity
	}
	if window < 0 {
		return models.SitElementGroup{}, nil, errors.New("proximity must be >= 0")
	}
	id := fg.ID
	if id == "" {
		id = uuid.New().String()
	}

	g := models.SitElementGroup{
		ID:                   id,
		SitID:                sitID,
		Name:                 fg.Name,
		Logic:                logic,
		ThresholdCount:       fg.Threshold,
		ProximityWindowChars: window,
	}
	links := make([]models.SitGroupElement, 0, len(fg.Elements))
	for _, elID := range fg.Elements {
		links = append(links, models.SitGroupElement{GroupID: id, ElementID: elID})
	}
	return g, links, nil
}

func (ff FilterSpec) Build(sitID string) (models.SitFilter, error) {
	kind := models.FilterKind(strings.ToUpper(ff.Kind))
	if kind != models.FilterInclude && kind != models.FilterExclude {
		return models.SitFilter{}, fmt.Errorf("unknown kind %q", ff.Kind)
	}
	if _, err := patterns.compile(ff.Pattern, false); err != nil {
		return models.SitFilter{}, fmt.Errorf("pattern %q: %v", ff.Pattern, err)
	}
	return models.SitFilter{
		ID:          uuid.New().String(),
		SitID:       sitID,
		Kind:        kind,
		Pattern:     ff.Pattern,
		Description: ff.Description,
	}, nil
}
