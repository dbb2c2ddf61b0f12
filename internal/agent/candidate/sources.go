package candidate

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/feichai0017/sit-pipeline/internal/models"
)

const (
	evidenceWindow = 50

	keywordLimit      = 40
	keywordMinFreq    = 2
	keywordConfidence = 0.65

	entityLimit      = 20
	entityMinLen     = 3
	entityConfidence = 0.75
)

type patternRule struct {
	label      string
	expr       string
	re         *regexp.Regexp
	confidence float64
}

func rule(label, expr string, confidence float64) patternRule {
	return patternRule{label: label, expr: expr, re: regexp.MustCompile(expr), confidence: confidence}
}

// Patterns is the fixed regex table, in evaluation order.
var Patterns = []patternRule{
	rule("EMAIL", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, 0.9),
	rule("CREDIT_CARD", `\b(?:\d[ -]*?){13,19}\b`, 0.8),
	rule("SSN", `\b\d{3}-\d{2}-\d{4}\b`, 0.95),
	rule("IP_ADDRESS", `\b(?:\d{1,3}\.){3}\d{1,3}\b`, 0.7),
}

var (
	wordRe = regexp.MustCompile(`[A-Za-z][A-Za-z\-]{2,}`)

	stopwords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "that": {}, "with": {}, "this": {},
		"from": {}, "your": {}, "have": {}, "will": {}, "into": {}, "were": {},
		"which": {}, "there": {}, "their": {}, "about": {}, "document": {},
	}
)

// tally counts values keeping first-seen order.
type tally struct {
	order  []string
	counts map[string]int
	first  map[string]int
}

func newTally() *tally {
	return &tally{counts: map[string]int{}, first: map[string]int{}}
}

func (t *tally) add(v string, pos int) { t.addN(v, pos, 1) }

func (t *tally) addN(v string, pos, n int) {
	if _, ok := t.counts[v]; !ok {
		t.order = append(t.order, v)
		t.first[v] = pos
	}
	t.counts[v] += n
}

// top returns up to n values by count descending, ties in first-seen order.
func (t *tally) top(n int) []string {
	out := append([]string(nil), t.order...)
	sort.SliceStable(out, func(i, j int) bool { return t.counts[out[i]] > t.counts[out[j]] })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// runeOffset converts a byte offset in s to a character offset.
func runeOffset(s string, byteOff int) int {
	return utf8.RuneCountInString(s[:byteOff])
}

// evidenceAt returns the context window of ±50 characters around the byte
// range [start, end) of text.
func evidenceAt(text string, start, end int, confidence float64) models.Evidence {
	runes := []rune(text)
	rs := runeOffset(text, start)
	re := rs + utf8.RuneCountInString(text[start:end])
	from := rs - evidenceWindow
	if from < 0 {
		from = 0
	}
	to := re + evidenceWindow
	if to > len(runes) {
		to = len(runes)
	}
	return models.Evidence{
		Context:    string(runes[from:to]),
		Position:   rs,
		Confidence: confidence,
	}
}

func regexCandidates(text string) []models.CandidateItem {
	var items []models.CandidateItem
	for _, p := range Patterns {
		matches := p.re.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}

		t := newTally()
		ends := map[string]int{}
		for _, m := range matches {
			v := text[m[0]:m[1]]
			if _, ok := ends[v]; !ok {
				ends[v] = m[1]
			}
			t.add(v, m[0])
		}

		for _, value := range t.order {
			freq := t.counts[value]
			h := ShannonEntropy(value)
			score := math.Min(100, float64(freq)*8+p.confidence*40+h*5)
			template := p.expr
			items = append(items, models.CandidateItem{
				Type:            models.CandidatePattern,
				ElementTypeHint: models.HintRegex,
				Value:           value,
				PatternTemplate: &template,
				Frequency:       freq,
				Confidence:      p.confidence,
				Score:           round(score, 2),
				Evidence:        []models.Evidence{evidenceAt(text, t.first[value], ends[value], p.confidence)},
				Metadata: map[string]interface{}{
					"label":   p.label,
					"entropy": round(h, 3),
				},
			})
		}
	}
	return items
}

func keywordCandidates(text string) []models.CandidateItem {
	t := newTally()
	for _, loc := range wordRe.FindAllStringIndex(text, -1) {
		token := strings.ToLower(text[loc[0]:loc[1]])
		if _, stop := stopwords[token]; stop {
			continue
		}
		t.add(token, loc[0])
	}

	var items []models.CandidateItem
	for _, token := range t.top(keywordLimit) {
		freq := t.counts[token]
		if freq < keywordMinFreq {
			continue
		}
		// first case-insensitive substring hit, which may sit inside a longer word
		start, end := t.first[token], t.first[token]+len(token)
		if loc := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(token)).FindStringIndex(text); loc != nil {
			start, end = loc[0], loc[1]
		}
		score := math.Min(100, float64(freq)*10+ShannonEntropy(token)*8+15)
		items = append(items, models.CandidateItem{
			Type:            models.CandidateKeyword,
			ElementTypeHint: models.HintKeywordList,
			Value:           token,
			Frequency:       freq,
			Confidence:      keywordConfidence,
			Score:           round(score, 2),
			Evidence:        []models.Evidence{evidenceAt(text, start, end, keywordConfidence)},
			Metadata:        map[string]interface{}{"source": "frequency"},
		})
	}
	return items
}

func entityCandidates(text string, entities []Entity, source string) []models.CandidateItem {
	t := newTally()
	for _, e := range entities {
		v := strings.TrimSpace(e.Text)
		if utf8.RuneCountInString(v) < entityMinLen {
			continue
		}
		n := e.Frequency
		if n < 1 {
			n = 1
		}
		t.addN(v, 0, n)
	}

	var items []models.CandidateItem
	for _, value := range t.top(entityLimit) {
		freq := t.counts[value]
		item := models.CandidateItem{
			Type:            models.CandidateEntity,
			ElementTypeHint: models.HintDictionary,
			Value:           value,
			Frequency:       freq,
			Confidence:      entityConfidence,
			Score:           math.Min(100, round(float64(freq)*12+35, 2)),
			Metadata:        map[string]interface{}{"source": source},
		}
		if idx := strings.Index(text, value); idx >= 0 {
			item.Evidence = []models.Evidence{evidenceAt(text, idx, idx+len(value), entityConfidence)}
		}
		items = append(items, item)
	}
	return items
}
