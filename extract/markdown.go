// CLAUDE:SUMMARY Sanitized HTML-to-Markdown rendering of extracted fragments (bluemonday + html-to-markdown).
package extract

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Markdown renders HTML fragments as Markdown. The fragment is first passed
// through a UGC sanitizer so scripts, iframes and event handlers never reach
// the converter. Safe for concurrent use.
type Markdown struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewMarkdown creates a Markdown renderer with CommonMark and table support.
func NewMarkdown() *Markdown {
	return &Markdown{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert turns fragment into Markdown. Relative links are resolved against
// baseURL when it is non-empty. Blank-line runs are collapsed like Normalize.
func (m *Markdown) Convert(fragment, baseURL string) (string, error) {
	clean := m.policy.Sanitize(fragment)

	var (
		out string
		err error
	)
	if baseURL != "" {
		out, err = m.conv.ConvertString(clean, converter.WithDomain(baseURL))
	} else {
		out, err = m.conv.ConvertString(clean)
	}
	if err != nil {
		return "", fmt.Errorf("extract: markdown: %w", err)
	}
	return JoinText([]string{strings.TrimSpace(out)}), nil
}
