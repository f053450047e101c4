package ingest

import "regexp"

var (
	// bracketCitationRe matches numeric markers: [12], [3,4], [5-7], [1, 8-10].
	bracketCitationRe = regexp.MustCompile(`\[\d+(?:\s*[,\-–]\s*\d+)*\]`)
	// authorYearCitationRe matches (Smith, 2020), (Smith et al., 2020),
	// (Smith and Jones, 2019).
	authorYearCitationRe = regexp.MustCompile(
		`\((?:[A-Z][\pL\-']+(?:\s+(?:et al\.|and\s+[A-Z][\pL\-']+))?),?\s+(?:19|20)\d{2}[a-z]?\)`)
	captionRe = regexp.MustCompile(`(?i)^\s*(figure|table)\s+\d+`)
)

// CitationMarkers returns the raw citation markers found in text, bracketed
// numeric markers first, then author-year markers, each in order of
// appearance. Markers are kept verbatim (e.g. "[3,4]", "(Smith et al., 2020)").
func CitationMarkers(text string) []string {
	out := bracketCitationRe.FindAllString(text, -1)
	out = append(out, authorYearCitationRe.FindAllString(text, -1)...)
	return out
}

// IsCaptionLine reports whether line starts a figure or table caption.
func IsCaptionLine(line string) bool {
	return captionRe.MatchString(line)
}
