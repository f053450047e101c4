package ingest

import "testing"

func TestDetectMetadata(t *testing.T) {
	d := NewHeuristicMetadataDetector()
	sections := NewRegexSectionDetector().Detect(paperText)
	title, authors, year, venue := d.Detect(paperText, sections)

	if title != "Deep Retrieval for Scholarly Question Answering" {
		t.Fatalf("title: %q", title)
	}
	if authors != "Jane Smith, Wei Chen and Ada L. Byron" {
		t.Fatalf("authors: %q", authors)
	}
	if year == nil || *year != 2021 {
		t.Fatalf("year: %v", year)
	}
	if venue == "" {
		t.Fatalf("expected a venue line")
	}
}

func TestDetectMetadataMissingFields(t *testing.T) {
	d := NewHeuristicMetadataDetector()
	text := "short\nnote"
	sections := NewRegexSectionDetector().Detect(text)
	title, authors, year, _ := d.Detect(text, sections)
	if title != "" || authors != "" || year != nil {
		t.Fatalf("expected empty metadata, got %q %q %v", title, authors, year)
	}
}
