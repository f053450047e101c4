package ingest

import (
	"regexp"
	"strings"

	"paperchat/internal/models"
)

// BodyLabel is the synthetic section for text outside any detected heading.
const BodyLabel = "Body"

// canonicalLabels maps a lowercased matched heading to its canonical label.
var canonicalLabels = map[string]string{
	"abstract":         "Abstract",
	"introduction":     "Introduction",
	"related work":     "Related Work",
	"background":       "Background",
	"method":           "Methods",
	"methods":          "Methods",
	"approach":         "Methods",
	"experiment":       "Experiments",
	"experiments":      "Experiments",
	"result":           "Results",
	"results":          "Results",
	"discussion":       "Discussion",
	"conclusion":       "Conclusion",
	"conclusions":      "Conclusion",
	"acknowledgment":   "Acknowledgments",
	"acknowledgments":  "Acknowledgments",
	"acknowledgement":  "Acknowledgments",
	"acknowledgements": "Acknowledgments",
	"references":       "References",
	"bibliography":     "References",
}

// headingRe matches a canonical section heading on its own line, optionally
// numbered ("2. Methods", "3) Results").
var headingRe = regexp.MustCompile(`(?i)^\s*(?:\d+(?:\.\d+)*[.)]?\s+)?` +
	`(abstract|introduction|related work|background|methods?|approach|experiments?|results?|discussion|conclusions?|acknowledge?ments?|references|bibliography)\s*$`)

type RegexSectionDetector struct{}

func NewRegexSectionDetector() *RegexSectionDetector { return &RegexSectionDetector{} }

// Detect scans line by line for canonical headings. Regions between headings
// become sections; text before the first heading falls into a synthetic Body
// section, and a document with no headings is a single Body section.
func (d *RegexSectionDetector) Detect(text string) []models.Section {
	type heading struct {
		label string
		start int
	}
	headings := make([]heading, 0, 8)

	off := 0
	for off <= len(text) {
		end := strings.IndexByte(text[off:], '\n')
		var line string
		lineEnd := len(text)
		if end >= 0 {
			line = text[off : off+end]
			lineEnd = off + end + 1
		} else {
			line = text[off:]
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			label := canonicalLabels[strings.ToLower(strings.TrimSpace(m[1]))]
			if label != "" {
				headings = append(headings, heading{label: label, start: off})
			}
		}
		if end < 0 {
			break
		}
		off = lineEnd
	}

	sections := make([]models.Section, 0, len(headings)+1)
	ordinal := 0
	if len(headings) == 0 {
		return []models.Section{{Label: BodyLabel, Start: 0, End: len(text), Ordinal: 0}}
	}
	if headings[0].start > 0 {
		sections = append(sections, models.Section{Label: BodyLabel, Start: 0, End: headings[0].start, Ordinal: ordinal})
		ordinal++
	}
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		sections = append(sections, models.Section{Label: h.label, Start: h.start, End: end, Ordinal: ordinal})
		ordinal++
	}
	return sections
}
