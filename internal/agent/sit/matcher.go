// Package sit evaluates Sensitive Information Type definitions against text.
package sit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

// ErrInvalidFilter is returned when a filter pattern does not compile.
var ErrInvalidFilter = errors.New("invalid filter pattern")

// ElementMatch is one occurrence of an element in the text. Offsets are in
// characters.
type ElementMatch struct {
	ElementID string
	Role      models.ElementRole
	Value     string
	Start     int
	End       int
}

// document is the text indexed for character-offset searches.
type document struct {
	text   string
	runes  []rune
	folded []rune
}

func newDocument(text string) *document {
	runes := []rune(text)
	folded := make([]rune, len(runes))
	for i, r := range runes {
		folded[i] = unicode.ToLower(r)
	}
	return &document{text: text, runes: runes, folded: folded}
}

// Match evaluates one SIT definition against text and returns every primary
// hit that passes the filters and satisfies all groups. It does not mutate
// its inputs.
func Match(
	text string,
	confidenceLevel int,
	elements []models.SitElement,
	groups []models.SitElementGroup,
	links []models.SitGroupElement,
	filters []models.SitFilter,
) ([]models.SitMatch, error) {
	fs, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}

	doc := newDocument(text)
	byID := make(map[string]*models.SitElement, len(elements))
	for i := range elements {
		byID[elements[i].ID] = &elements[i]
	}
	members := make(map[string][]string)
	for _, l := range links {
		members[l.GroupID] = append(members[l.GroupID], l.ElementID)
	}

	matchedGroups := make([]models.MatchedGroup, 0, len(groups))
	for _, g := range groups {
		matchedGroups = append(matchedGroups, models.MatchedGroup{GroupID: g.ID, GroupName: g.Name})
	}

	// member hits do not depend on the primary hit
	memo := make(map[string][]ElementMatch)
	hitsOf := func(el *models.SitElement) []ElementMatch {
		if m, ok := memo[el.ID]; ok {
			return m
		}
		m := findMatches(doc, el)
		memo[el.ID] = m
		return m
	}

	matches := []models.SitMatch{}
	for i := range elements {
		el := &elements[i]
		if el.Role != models.RolePrimary {
			continue
		}
		for _, hit := range findMatches(doc, el) {
			if !fs.pass(text, hit.Value) {
				continue
			}
			if !groupsSatisfied(hit, groups, members, byID, hitsOf) {
				continue
			}
			matches = append(matches, models.SitMatch{
				Value:           hit.Value,
				Position:        hit.Start,
				Confidence:      confidenceLevel,
				MatchedElements: []models.MatchedElement{{ElementID: hit.ElementID, Role: hit.Role}},
				MatchedGroups:   matchedGroups,
			})
		}
	}
	return matches, nil
}

// MatchBundle runs Match over a loaded definition.
func MatchBundle(text string, b *models.SitBundle) ([]models.SitMatch, error) {
	return Match(text, b.Sit.ConfidenceLevel, b.Elements, b.Groups, b.Links, b.Filters)
}

// findMatches returns every occurrence of one element. REGEX elements with an
// invalid pattern and FUNCTION elements yield nothing.
func findMatches(doc *document, el *models.SitElement) []ElementMatch {
	if el.Pattern == nil || *el.Pattern == "" {
		return nil
	}

	var out []ElementMatch
	switch el.Type {
	case models.ElementRegex:
		re, err := patterns.compile(*el.Pattern, el.CaseSensitive)
		if err != nil {
			return nil
		}
		for _, loc := range re.FindAllStringIndex(doc.text, -1) {
			start := utf8.RuneCountInString(doc.text[:loc[0]])
			end := start + utf8.RuneCountInString(doc.text[loc[0]:loc[1]])
			out = append(out, ElementMatch{
				ElementID: el.ID,
				Role:      el.Role,
				Value:     doc.text[loc[0]:loc[1]],
				Start:     start,
				End:       end,
			})
		}
	case models.ElementKeywordList, models.ElementDictionary:
		source := doc.folded
		if el.CaseSensitive {
			source = doc.runes
		}
		for _, term := range ParseTerms(*el.Pattern).Values() {
			needle := []rune(term)
			if !el.CaseSensitive {
				for i, r := range needle {
					needle[i] = unicode.ToLower(r)
				}
			}
			for idx := runeIndex(source, needle, 0); idx >= 0; idx = runeIndex(source, needle, idx+len(needle)) {
				out = append(out, ElementMatch{
					ElementID: el.ID,
					Role:      el.Role,
					Value:     string(doc.runes[idx : idx+len(needle)]),
					Start:     idx,
					End:       idx + len(needle),
				})
			}
		}
	default:
		return nil
	}

	if el.WordBoundary {
		kept := out[:0]
		for _, m := range out {
			if atWordBoundary(doc.runes, m.Start, m.End) {
				kept = append(kept, m)
			}
		}
		out = kept
	}
	return out
}

func runeIndex(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if haystack[i] != needle[0] {
			continue
		}
		j := 1
		for j < len(needle) && haystack[i+j] == needle[j] {
			j++
		}
		if j == len(needle) {
			return i
		}
	}
	return -1
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// atWordBoundary reports whether the hit [start, end) is not glued to a word
// character on either side. Edges that are not word characters always pass.
func atWordBoundary(runes []rune, start, end int) bool {
	if start >= end {
		return true
	}
	if isWordRune(runes[start]) && start > 0 && isWordRune(runes[start-1]) {
		return false
	}
	if isWordRune(runes[end-1]) && end < len(runes) && isWordRune(runes[end]) {
		return false
	}
	return true
}

func groupsSatisfied(
	primary ElementMatch,
	groups []models.SitElementGroup,
	members map[string][]string,
	byID map[string]*models.SitElement,
	hitsOf func(*models.SitElement) []ElementMatch,
) bool {
	for _, g := range groups {
		var resolved []*models.SitElement
		for _, id := range members[g.ID] {
			if el, ok := byID[id]; ok {
				resolved = append(resolved, el)
			}
		}
		if len(resolved) == 0 {
			continue
		}

		hits := 0
		for _, el := range resolved {
			for _, m := range hitsOf(el) {
				if abs(m.Start-primary.Start) <= g.ProximityWindowChars {
					hits++
					break
				}
			}
		}

		switch g.Logic {
		case models.LogicAnd:
			if hits < len(resolved) {
				return false
			}
		case models.LogicOr:
			if hits < 1 {
				return false
			}
		case models.LogicThreshold:
			need := 1
			if g.ThresholdCount != nil {
				need = *g.ThresholdCount
			}
			if hits < need {
				return false
			}
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type filterSet struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

func compileFilters(filters []models.SitFilter) (*filterSet, error) {
	fs := &filterSet{}
	for _, f := range filters {
		re, err := patterns.compile(f.Pattern, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidFilter, f.Pattern, err)
		}
		switch strings.ToUpper(string(f.Kind)) {
		case string(models.FilterInclude):
			fs.include = append(fs.include, re)
		case string(models.FilterExclude):
			fs.exclude = append(fs.exclude, re)
		}
	}
	return fs, nil
}

// pass applies INCLUDE filters to the full text and EXCLUDE filters to the
// hit value.
func (fs *filterSet) pass(text, value string) bool {
	if len(fs.include) > 0 {
		ok := false
		for _, re := range fs.include {
			if re.MatchString(text) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, re := range fs.exclude {
		if re.MatchString(value) {
			return false
		}
	}
	return true
}
