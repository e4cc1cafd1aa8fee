// CLAUDE:SUMMARY CSS selector subset, attribute access and document-order navigation over parsed HTML.
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns all nodes under root matching a simple CSS
// selector, in document order. Supports a subset of CSS selectors:
//   - tag: "details", "h2"
//   - .class: ".details_title"
//   - #id: "#latest"
//   - tag.class: "div.details_title"
//   - tag[attr]: "div[id]"
//   - tag.class[attr=val]: "div.details_title[data-kind=release]"
//   - combinations separated by space (descendant combinator)
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parseSimpleSelector(parts[0]))

	for i := 1; i < len(parts); i++ {
		m := parseSimpleSelector(parts[i])
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				for _, n := range matchSimple(c, m) {
					if !seen[n] {
						seen[n] = true
						next = append(next, n)
					}
				}
			}
		}
		matches = next
	}

	return matches
}

// FindNext returns the first element after n in document order that matches
// selector. Descendants of n come first, as in a pre-order walk of the whole
// document starting just past n's start tag. Returns nil when nothing follows.
func FindNext(n *html.Node, selector string) *html.Node {
	m := parseSimpleSelector(strings.TrimSpace(selector))
	for cur := following(n); cur != nil; cur = following(cur) {
		if matchesSelector(cur, m) {
			return cur
		}
	}
	return nil
}

// NextElementSibling returns the next sibling of n that is an element node.
func NextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// following is the pre-order successor of n.
func following(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.NextSibling != nil {
			return cur.NextSibling
		}
	}
	return nil
}

// matchSimple finds all nodes in the subtree rooted at root matching m.
func matchSimple(root *html.Node, m simpleSelector) []*html.Node {
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = strings.ToLower(sel)
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}

	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}

	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		if s.attrVal != "" {
			return Attr(n, s.attrKey) == s.attrVal
		}
		return HasAttr(n, s.attrKey)
	}

	return true
}

// Attr returns the value of an attribute on a node, or "" if absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node carries a specific attribute, even an empty one.
func HasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
