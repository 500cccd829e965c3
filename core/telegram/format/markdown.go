package format

import (
	"strings"
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes the MarkdownV2 special characters so free-form
// text (product titles, user input) can be embedded into formatted messages.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < 128 && strings.ContainsRune(mdV2Specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeMarkdown escapes the legacy Markdown special characters.
func EscapeMarkdown(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch r {
		case '_', '*', '`', '[':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
