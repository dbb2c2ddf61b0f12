// Package blob holds the pieces shared by every storage backend.
package blob

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

// ErrNotFound is returned by Read when nothing is stored at the path.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidPath is returned for empty or escaping paths.
var ErrInvalidPath = errors.New("storage: invalid path")

// SafeName keeps letters, digits, '-', '_' and '.'; everything else becomes '_'.
func SafeName(name string) string {
	if name == "" {
		return "upload.bin"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Key builds the object key for filename under scope. Scope segments are
// sanitized individually so callers can pass "uploads/<scanId>".
func Key(scope, filename string) (string, error) {
	var parts []string
	for _, seg := range strings.Split(scope, "/") {
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		parts = append(parts, SafeName(seg))
	}
	name := SafeName(filename)
	if name == "." || name == ".." {
		return "", ErrInvalidPath
	}
	parts = append(parts, name)
	return path.Join(parts...), nil
}
