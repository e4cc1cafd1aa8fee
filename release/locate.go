// CLAUDE:SUMMARY Release locator: ordered fallback chain of strategies producing the newest release entry.
// Package release locates the most recent release section in a release-notes
// HTML page.
//
// Two independent strategies are tried in order: structured title markers
// (div.details_title[id] followed by a <details> block) and, failing that,
// a scan of h2/h3 headings that read like "January 8, 2026 release". The
// first strategy that yields an entry wins. Document order is taken as
// recency order; a page that lists an older release above the newest one
// will be misread. Heading matching uses ASCII word boundaries.
package release

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

// MaxBodyChars caps the extracted body handed downstream.
const MaxBodyChars = 20000

// ErrNotFound is returned when no strategy finds a release section.
var ErrNotFound = errors.New("release: could not detect latest release section on the page")

// Entry is the newest release found on the page.
type Entry struct {
	ID        string // stable identifier, compared against the cursor
	Title     string // human-readable title
	Body      string // normalized text, at most MaxBodyChars characters
	HTML      string // rendered markup of the extracted region
	Strategy  string // name of the strategy that produced the entry
	Truncated bool   // true if Body was cut at MaxBodyChars
}

// Strategy inspects a parsed document and returns an entry, or nil when it
// has nothing usable. Strategies never return errors: a miss simply defers to
// the next strategy in the chain.
type Strategy func(doc *html.Node) *Entry

// DefaultStrategies is the production chain: markers first, headings second.
func DefaultStrategies() []Strategy {
	return []Strategy{
		MarkerStrategy(MarkerSelector, DisclosureSelector),
		HeadingStrategy(),
	}
}

// Locate runs strategies in order against doc and returns the first entry.
// The body is capped at MaxBodyChars. If every strategy misses, ErrNotFound
// is returned.
func Locate(doc *html.Node, strategies ...Strategy) (*Entry, error) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	for _, s := range strategies {
		e := s(doc)
		if e == nil {
			continue
		}
		e.Body, e.Truncated = Truncate(e.Body, MaxBodyChars)
		return e, nil
	}
	return nil, ErrNotFound
}

// LocateHTML parses raw markup and locates the newest release in it.
func LocateHTML(raw []byte, strategies ...Strategy) (*Entry, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("release: parse page: %w", err)
	}
	return Locate(doc, strategies...)
}

// Truncate returns s cut to at most max characters (runes). The second
// return value reports whether anything was dropped.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
