package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeForTerminal strips codepoints tcell renders badly: skin tone
// modifiers, zero-width joiners, and variation selectors. Listing text and
// messages pass through here before hitting a table cell or text view.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r >= 0x1F3FB && r <= 0x1F3FF: // skin tone modifiers
		case r == 0x200D: // zero width joiner
		case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		case r >= 0xE0100 && r <= 0xE01EF: // variation selectors supplement
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}
