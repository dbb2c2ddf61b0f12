package phrase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

type streamReport struct {
	StreamName string
	Status     string
	TopBigrams []scoredEntry
}

type scoredEntry struct {
	Phrase string
	Score  float64
}

// ParseOutput extracts phrase scores from scorer stdout. The output may carry
// log noise and ANSI color codes around the JSON document, which is either a
// single report object or an array of them. The first well-formed JSON value
// is the document; its fields are read leniently.
func ParseOutput(out string) ([]PhraseScore, error) {
	clean := strings.TrimSpace(ansiRe.ReplaceAllString(out, ""))

	payload, ok := decodeStrict(clean)
	if !ok {
		payload, ok = decodeEmbedded(clean)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedOutput, truncate(clean, 200))
	}

	scores := []PhraseScore{}
	for _, r := range reportsOf(payload) {
		if r.Status != "success" {
			continue
		}
		stream := r.StreamName
		if stream == "" {
			stream = "Unknown"
		}
		for _, e := range r.TopBigrams {
			p := strings.TrimSpace(e.Phrase)
			if p == "" {
				continue
			}
			scores = append(scores, PhraseScore{StreamName: stream, Phrase: p, Score: e.Score})
		}
	}
	return scores, nil
}

func decodeStrict(s string) (interface{}, bool) {
	if s == "" {
		return nil, false
	}
	dec := newDecoder(s)
	v, ok := decodeContainer(dec)
	if !ok || dec.More() {
		return nil, false
	}
	return v, true
}

// decodeEmbedded tries every '{' or '[' in order and keeps the first that
// starts a complete JSON value.
func decodeEmbedded(s string) (interface{}, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		if v, ok := decodeContainer(newDecoder(s[i:])); ok {
			return v, true
		}
	}
	return nil, false
}

func newDecoder(s string) *json.Decoder {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	return dec
}

// decodeContainer accepts any well-formed object or array, whatever its
// field types.
func decodeContainer(dec *json.Decoder) (interface{}, bool) {
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return v, true
	}
	return nil, false
}

// reportsOf maps a decoded document onto reports. Non-object array entries
// are skipped.
func reportsOf(payload interface{}) []streamReport {
	var objs []map[string]interface{}
	switch v := payload.(type) {
	case map[string]interface{}:
		objs = append(objs, v)
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				objs = append(objs, m)
			}
		}
	}

	reports := make([]streamReport, 0, len(objs))
	for _, m := range objs {
		r := streamReport{
			StreamName: stringValue(m["stream_name"]),
			Status:     stringValue(m["status"]),
		}
		bigrams, _ := m["top_bigrams"].([]interface{})
		for _, b := range bigrams {
			entry, ok := b.(map[string]interface{})
			if !ok {
				continue
			}
			r.TopBigrams = append(r.TopBigrams, scoredEntry{
				Phrase: stringValue(entry["phrase"]),
				Score:  scoreValue(entry["score"]),
			})
		}
		reports = append(reports, r)
	}
	return reports
}

// stringValue renders scalars as text; null and missing fields are "".
func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	default:
		b, _ := json.Marshal(s)
		return string(b)
	}
}

// scoreValue reads a numeric or numeric-string score; anything else is 0.
func scoreValue(v interface{}) float64 {
	var text string
	switch s := v.(type) {
	case json.Number:
		text = s.String()
	case string:
		text = strings.TrimSpace(s)
	default:
		return 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return f
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
