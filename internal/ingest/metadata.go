package ingest

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"paperchat/internal/models"
)

var (
	yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	// authorLineRe matches name lists like "Jane Smith, Wei Chen and Ada L. Byron".
	authorLineRe = regexp.MustCompile(`^[A-Z][\pL.\-']+(?:\s+[A-Z][\pL.\-']*\.?)+` +
		`(?:\s*(?:,|and|,\s*and)\s*[A-Z][\pL\s.\-']+)*$`)
	venueRe = regexp.MustCompile(`(?i)(proceedings of|in proceedings|journal of|transactions on|conference on|workshop on|arxiv)`)
)

// HeuristicMetadataDetector reads the top of the first page: the title is the
// longest line before the first heading or the word "abstract", authors are
// the first following line that looks like a name list, the year is the first
// in-range 4-digit token, and the venue is the first line naming a publication
// series. Anything not found stays empty.
type HeuristicMetadataDetector struct {
	maxLines int
}

func NewHeuristicMetadataDetector() *HeuristicMetadataDetector {
	return &HeuristicMetadataDetector{maxLines: 40}
}

func (d *HeuristicMetadataDetector) Detect(text string, sections []models.Section) (string, string, *int, string) {
	head := text
	if len(head) > 4000 {
		head = head[:4000]
	}
	if len(sections) > 0 && sections[0].Label != BodyLabel && sections[0].Start == 0 {
		// Document starts directly at a heading; nothing precedes it to mine.
		head = firstLines(head, 5)
	}

	lines := make([]string, 0, d.maxLines)
	sc := bufio.NewScanner(strings.NewReader(head))
	for sc.Scan() && len(lines) < d.maxLines {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	title := ""
	titleIdx := -1
	for i, line := range lines {
		low := strings.ToLower(line)
		if strings.HasPrefix(low, "abstract") || headingRe.MatchString(line) {
			break
		}
		if venueRe.MatchString(line) {
			continue
		}
		if len(line) > len(title) && len(line) >= 10 && !yearOnlyLine(line) {
			title = line
			titleIdx = i
		}
	}

	authors := ""
	if titleIdx >= 0 {
		for i := titleIdx + 1; i < len(lines) && i <= titleIdx+3; i++ {
			if authorLineRe.MatchString(lines[i]) && !venueRe.MatchString(lines[i]) {
				authors = lines[i]
				break
			}
		}
	}

	var year *int
	if m := yearRe.FindString(head); m != "" {
		if y, err := strconv.Atoi(m); err == nil && y >= 1900 && y <= 2099 {
			year = &y
		}
	}

	venue := ""
	for _, line := range lines {
		if venueRe.MatchString(line) {
			venue = line
			break
		}
	}

	return title, authors, year, venue
}

func yearOnlyLine(line string) bool {
	return yearRe.MatchString(line) && len(strings.Fields(line)) <= 2
}

func firstLines(s string, n int) string {
	idx := 0
	for i := 0; i < n; i++ {
		j := strings.IndexByte(s[idx:], '\n')
		if j < 0 {
			return s
		}
		idx += j + 1
	}
	return s[:idx]
}
