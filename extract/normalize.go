// CLAUDE:SUMMARY Text normalizer: drops script/style/noscript, joins text nodes with newlines, collapses blank runs.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Normalize converts a markup subtree into clean prose. Text nodes are joined
// with "\n", runs of three or more newlines become a single blank line, and
// the result is trimmed. Script, style and noscript subtrees are ignored.
func Normalize(n *html.Node) string {
	if n == nil {
		return ""
	}
	return JoinText(TextNodes(n))
}

// NormalizeHTML parses a markup fragment and normalizes it.
func NormalizeHTML(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("extract: parse fragment: %w", err)
	}
	return Normalize(doc), nil
}

// JoinText joins raw text node values with "\n" and applies the same
// blank-line collapsing and trimming as Normalize.
func JoinText(parts []string) string {
	text := strings.Join(parts, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// TextNodes returns the values of all human-readable text nodes under n in
// document order, whitespace-only nodes included.
func TextNodes(n *html.Node) []string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			parts = append(parts, n.Data)
			return
		case html.ElementNode:
			if isNonContent(n) {
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return parts
}

// InlineText returns the text of n with each text node trimmed, joined by a
// single space and internal whitespace collapsed. Used for headings.
func InlineText(n *html.Node) string {
	var words []string
	for _, p := range TextNodes(n) {
		words = append(words, strings.Fields(p)...)
	}
	return strings.Join(words, " ")
}

// Render serialises a node back to markup.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

func isNonContent(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript:
		return true
	}
	return false
}
