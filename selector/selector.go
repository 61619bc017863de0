// Package selector parses frame-crossing selectors.
//
// A selector is one or more CSS query segments joined by the literal token
// "|>". Every segment but the last must match a frame-hosting element; the
// next segment is then queried inside that frame's document:
//
//	iframe#checkout |> form.pay |> button[type=submit]
//
// Whitespace around the delimiter is insignificant.
package selector

import (
	"errors"
	"strings"
)

// Delimiter separates segments.
const Delimiter = "|>"

var (
	// ErrEmpty is returned for a selector without any segment.
	ErrEmpty = errors.New("selector: empty")
	// ErrEmptySegment is returned when a delimiter has nothing on one side.
	ErrEmptySegment = errors.New("selector: empty segment")
)

// Selector is an immutable parsed selector.
type Selector struct {
	raw      string
	segments []string
}

// Parse splits s on the delimiter and trims every segment.
func Parse(s string) (Selector, error) {
	if strings.TrimSpace(s) == "" {
		return Selector{}, ErrEmpty
	}
	parts := strings.Split(s, Delimiter)
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Selector{}, ErrEmptySegment
		}
		segs = append(segs, p)
	}
	return Selector{raw: s, segments: segs}, nil
}

// MustParse is Parse that panics on error. Intended for literals.
func MustParse(s string) Selector {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// String returns the selector exactly as given. It is also the key of the
// page-side resolution cache.
func (s Selector) String() string { return s.raw }

// Segments returns a copy of the trimmed segments.
func (s Selector) Segments() []string {
	return append([]string(nil), s.segments...)
}

// Valid reports whether s came out of a successful Parse.
func (s Selector) Valid() bool { return len(s.segments) > 0 }
