package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// Escaped control sequences that leak out of inline scripts and JSON blobs.
	escapedControls = strings.NewReplacer(`\r`, " ", `\n`, " ", `\t`, " ")
)

// Normalize collapses whitespace and strips control characters so free-text
// patterns see a single-spaced line.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == ' ' {
			return ' '
		}
		return r
	}, text)
	text = escapedControls.Replace(text)

	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
