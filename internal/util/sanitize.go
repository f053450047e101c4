package util

import "strings"

// SanitizeText removes bytes that Postgres text columns reject (NUL from some
// PDF extractors) and non-printing controls other than common whitespace.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}
