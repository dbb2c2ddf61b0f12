package sit

import (
	"encoding/json"
	"strings"
)

// Terms is the parsed form of a KEYWORD_LIST or DICTIONARY pattern. The
// stored pattern is either a JSON array of strings or a comma-separated list.
type Terms interface {
	Values() []string
	isTerms()
}

// JSONArray holds terms that were stored as a JSON array.
type JSONArray []string

// CommaList holds terms that were stored as "a, b, c".
type CommaList []string

func (t JSONArray) Values() []string { return []string(t) }
func (t CommaList) Values() []string { return []string(t) }
func (JSONArray) isTerms()           {}
func (CommaList) isTerms()           {}

// ParseTerms reads a term pattern. A valid JSON array wins; anything else is
// split on commas. Blank terms are dropped in both forms.
func ParseTerms(pattern string) Terms {
	var raw []interface{}
	if err := json.Unmarshal([]byte(pattern), &raw); err == nil {
		out := make(JSONArray, 0, len(raw))
		for _, item := range raw {
			var s string
			switch v := item.(type) {
			case string:
				s = v
			case nil:
				continue
			default:
				b, _ := json.Marshal(v)
				s = string(b)
			}
			if strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}

	out := CommaList{}
	for _, part := range strings.Split(pattern, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
