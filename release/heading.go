// CLAUDE:SUMMARY Secondary strategy: first h2/h3 reading like "<date> 20xx release", body up to the next such heading.
package release

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/relwatch/extract"
)

var (
	releaseWordRe = regexp.MustCompile(`(?i)\brelease\b`)
	yearRe        = regexp.MustCompile(`\b20\d{2}\b`)
)

// LooksLikeReleaseHeading reports whether collapsed heading text names a
// release: the whole word "release" plus a 20xx year. Word boundaries are
// ASCII-only, so a non-ASCII letter next to either word still counts as a
// boundary ("éRelease 2026" and "Release 2026年" both match).
func LooksLikeReleaseHeading(text string) bool {
	return releaseWordRe.MatchString(text) && yearRe.MatchString(text)
}

// HeadingStrategy scans h2 and h3 elements in document order. The first one
// that looks like a release heading starts the section; the section runs
// through its following element siblings up to, not including, the next
// release heading (or to the end of the parent). The identifier is the
// slug of the heading text and the title is the heading text itself.
func HeadingStrategy() Strategy {
	return func(doc *html.Node) *Entry {
		headings := releaseHeadings(doc)
		if len(headings) == 0 {
			return nil
		}

		start := headings[0]
		var end *html.Node
		if len(headings) > 1 {
			end = headings[1]
		}

		text := extract.InlineText(start)

		var parts []string
		var markup strings.Builder
		for n := start; n != nil && n != end; n = extract.NextElementSibling(n) {
			if n != start {
				parts = append(parts, "\n")
				markup.WriteByte('\n')
			}
			parts = append(parts, extract.TextNodes(n)...)
			markup.WriteString(extract.Render(n))
		}

		return &Entry{
			ID:       Slugify(text),
			Title:    text,
			Body:     extract.JoinText(parts),
			HTML:     markup.String(),
			Strategy: "heading",
		}
	}
}

// releaseHeadings returns every h2/h3 in document order whose text looks
// like a release heading.
func releaseHeadings(doc *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.H2 || n.DataAtom == atom.H3) {
			if LooksLikeReleaseHeading(extract.InlineText(n)) {
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}
