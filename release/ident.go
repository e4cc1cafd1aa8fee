package release

import (
	"strings"
	"unicode"
)

// Slugify derives a stable identifier from heading text: lowercase, every
// run of characters outside [a-z0-9] becomes a single "-", and leading or
// trailing "-" are trimmed. "January 8, 2026 release" → "january-8-2026-release".
func Slugify(text string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// TitleFromID turns an identifier into a display title: "-" and "_" become
// spaces, then each word is title-cased (first letter of every letter run
// upper, the rest lower). "january-15-2026-release" → "January 15 2026 Release".
func TitleFromID(id string) string {
	spaced := strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, id)

	var b strings.Builder
	prevLetter := false
	for _, r := range spaced {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
