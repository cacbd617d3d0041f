package pdf

import (
	"regexp"
	"strings"
)

type repair struct {
	pattern *regexp.Regexp
	replace string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)

	// Order matters: acronyms first so "I R R 1 5 %" does not feed digits
	// into the letter rule.
	ocrRepairs = []repair{
		{regexp.MustCompile(`\b[A-Z](?: [A-Z]\b)+`), ""},
		{regexp.MustCompile(`(\d) (\d{3})\b`), "$1$2"},
		{regexp.MustCompile(`([$€£]) (\d)`), "$1$2"},
		{regexp.MustCompile(`(\d) %`), "$1%"},
	}
)

// Normalize collapses whitespace and repairs common OCR spacing artifacts:
// spaced acronyms ("I R R"), spaced thousands ("1 000"), and stray spaces
// after currency symbols or before percent signs. The repairs are applied
// until the text stops changing, so Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := text
	for {
		next := normalizePass(s)
		if next == s {
			break
		}
		s = next
	}
	return strings.TrimSpace(s)
}

func normalizePass(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	for _, r := range ocrRepairs {
		if r.replace == "" {
			s = r.pattern.ReplaceAllStringFunc(s, func(m string) string {
				return strings.ReplaceAll(m, " ", "")
			})
			continue
		}
		s = r.pattern.ReplaceAllString(s, r.replace)
	}
	return strings.TrimSpace(s)
}
