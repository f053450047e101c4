package ingest

import "paperchat/internal/models"

// PageRange maps a page number to its character span in the extracted text.
type PageRange struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// ParsedDocument is the structured, paper-aware form of one uploaded PDF.
type ParsedDocument struct {
	Text     string           `json:"text"`
	Pages    []PageRange      `json:"pages"`
	Sections []models.Section `json:"sections"`
	Title    string           `json:"title,omitempty"`
	Authors  string           `json:"authors,omitempty"`
	Year     *int             `json:"year,omitempty"`
	Venue    string           `json:"venue,omitempty"`
}

// PageAt returns the page number covering byte offset off, or 0 when pages
// were not tracked.
func (d *ParsedDocument) PageAt(off int) int {
	for _, p := range d.Pages {
		if off >= p.Start && off < p.End {
			return p.Page
		}
	}
	if n := len(d.Pages); n > 0 && off >= d.Pages[n-1].End {
		return d.Pages[n-1].Page
	}
	return 0
}

// SectionDetector finds structural regions in extracted paper text.
// Detect never fails: when no headings match it returns a single synthetic
// "Body" section covering the whole text.
type SectionDetector interface {
	Detect(text string) []models.Section
}

// MetadataDetector extracts best-effort bibliographic metadata. Fields that
// cannot be determined stay zero-valued; detection never fails ingestion.
type MetadataDetector interface {
	Detect(text string, sections []models.Section) (title, authors string, year *int, venue string)
}
