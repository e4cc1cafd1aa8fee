// CLAUDE:SUMMARY Primary strategy: first div.details_title[id] marker, body from the next <details> block.
package release

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/relwatch/extract"
)

const (
	// MarkerSelector matches release title containers carrying an id.
	MarkerSelector = "div.details_title[id]"
	// DisclosureSelector matches the expandable block holding release content.
	DisclosureSelector = "details"
)

// MarkerStrategy finds the first element matching markerSel and uses its id
// attribute as the release identifier. The body is the nearest following
// element matching blockSel; if there is none, the marker's parent
// container is used instead. An empty (after trimming) id is a miss.
func MarkerStrategy(markerSel, blockSel string) Strategy {
	return func(doc *html.Node) *Entry {
		markers := extract.QuerySelectorAll(doc, markerSel)
		if len(markers) == 0 {
			return nil
		}

		latest := markers[0]
		id := strings.TrimSpace(extract.Attr(latest, "id"))
		if id == "" {
			return nil
		}

		region := extract.FindNext(latest, blockSel)
		if region == nil {
			region = latest.Parent
		}

		return &Entry{
			ID:       id,
			Title:    TitleFromID(id),
			Body:     extract.Normalize(region),
			HTML:     extract.Render(region),
			Strategy: "marker",
		}
	}
}
