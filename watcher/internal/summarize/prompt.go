package summarize

import "strings"

// instructions is the fixed template sent ahead of the release text. The
// section order, bullet ranges and tag conventions are part of the chat
// contract: the summary is posted as-is.
const instructions = `Summarize the following vendor release notes for a product, marketing and engineering audience.

Output format (Slack mrkdwn, no headings other than the three below, in this exact order):

*Need to know*
- 2 to 4 bullets: the most important changes, one line each.

*For marketers*
- 3 to 6 bullets: new capabilities, channels, integrations and partnerships that affect campaigns.

*For developers*
- 3 to 6 bullets: API, SDK, data and implementation changes.
- Prefix any breaking or behavior-changing item with "BREAKING: ".

Rules:
- Tag every feature with its maturity when the notes state it: (EA), (Beta) or (GA).
- Use concise bullets; no introductions, no closing remarks, no links.
- Do not invent features that are not in the notes.
- Keep the whole output under 2000 characters.

Release notes:
`

// BuildPrompt returns the full prompt for body.
func BuildPrompt(body string) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(body))
	b.WriteString(instructions)
	b.WriteString(body)
	return b.String()
}
