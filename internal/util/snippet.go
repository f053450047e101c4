package util

import (
	"strings"
	"unicode"
)

// Snippet cleans s for display and truncates it to maxRunes.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 240
	}
	s = SanitizeText(s)
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return s
}

// EvidenceSnippet picks the sentence of chunkText most relevant to the query,
// falling back to a plain truncation when no query term matches.
func EvidenceSnippet(chunkText, query string, maxRunes int) string {
	chunkText = Snippet(chunkText, 4000)
	if chunkText == "" {
		return ""
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return Snippet(chunkText, maxRunes)
	}
	best := ""
	bestScore := 0
	for _, sentence := range SplitSentences(chunkText) {
		low := strings.ToLower(sentence)
		score := 0
		for _, t := range terms {
			if strings.Contains(low, t) {
				score++
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && len(sentence) < len(best)) {
			best = sentence
			bestScore = score
		}
	}
	if bestScore == 0 {
		return Snippet(chunkText, maxRunes)
	}
	return Snippet(best, maxRunes)
}

// SplitSentences splits on ./!/? terminators, keeping the terminator.
func SplitSentences(s string) []string {
	out := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			x := strings.TrimSpace(b.String())
			if x != "" {
				out = append(out, x)
			}
			b.Reset()
		}
	}
	rest := strings.TrimSpace(b.String())
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

func queryTerms(s string) []string {
	stop := map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "to": {}, "of": {}, "in": {}, "on": {},
		"for": {}, "is": {}, "are": {}, "was": {}, "were": {}, "what": {}, "how": {}, "why": {},
		"which": {}, "that": {}, "this": {}, "with": {}, "from": {}, "does": {}, "say": {},
	}
	seen := map[string]struct{}{}
	terms := make([]string, 0, 8)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if len(f) < 3 {
			continue
		}
		if _, ok := stop[f]; ok {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
