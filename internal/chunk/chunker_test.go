package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"paperchat/internal/ingest"
	"paperchat/internal/models"
)

func bodyDoc(text string) ingest.ParsedDocument {
	return ingest.ParsedDocument{
		Text:     text,
		Sections: []models.Section{{Label: "Body", Start: 0, End: len(text), Ordinal: 0}},
	}
}

func syntheticText(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "Sentence number %04d carries a unique payload. ", i)
	}
	return b.String()
}

func TestSplitSizeBound(t *testing.T) {
	s := NewSplitter(200, 40)
	chunks := s.Split("sess", "doc", bodyDoc(syntheticText(60)))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Text) > 200 {
			t.Fatalf("chunk %d exceeds max: %d", c.ChunkIndex, len(c.Text))
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	s := NewSplitter(200, 40)
	doc := bodyDoc(syntheticText(40))
	a := s.Split("sess", "doc", doc)
	b := s.Split("sess", "doc", doc)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Text != b[i].Text || a[i].ChunkID != b[i].ChunkID {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestSplitCoverageNoGaps(t *testing.T) {
	text := syntheticText(80)
	s := NewSplitter(300, 50)
	chunks := s.Split("sess", "doc", bodyDoc(text))

	coveredEnd := 0
	for i, c := range chunks {
		start := strings.Index(text[max(0, coveredEnd-len(c.Text)):], c.Text)
		if start < 0 {
			t.Fatalf("chunk %d text not found in source", i)
		}
		start += max(0, coveredEnd-len(c.Text))
		if start > coveredEnd {
			t.Fatalf("gap before chunk %d: starts at %d, covered to %d", i, start, coveredEnd)
		}
		if end := start + len(c.Text); end > coveredEnd {
			coveredEnd = end
		}
	}
	if coveredEnd != len(text) {
		t.Fatalf("tail not covered: %d of %d", coveredEnd, len(text))
	}
}

func TestSplitShortSectionSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 150)
	chunks := s.Split("sess", "doc", bodyDoc("A short section. Nothing more."))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitSentenceBoundaryPreferred(t *testing.T) {
	text := "First sentence here. Second sentence follows and is long enough to overflow the window limit."
	s := NewSplitter(40, 5)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if !strings.HasSuffix(chunks[0].Text, "First sentence here.") {
		t.Fatalf("expected first chunk to end at sentence boundary, got %q", chunks[0].Text)
	}
}

func TestSplitHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	s := NewSplitter(100, 10)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if len(chunks[0].Text) != 100 {
		t.Fatalf("expected hard cut at 100, got %d", len(chunks[0].Text))
	}
}

func TestSplitHardCutKeepsRunesIntact(t *testing.T) {
	// Two-byte runes with no sentence boundary: every hard cut lands mid-rune
	// unless the splitter backs up to a rune start.
	text := strings.Repeat("é", 150)
	s := NewSplitter(101, 10)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d contains a split rune: %q", i, c.Text)
		}
		if !strings.Contains(text, c.Text) {
			t.Fatalf("chunk %d is not a substring of the source", i)
		}
	}
}

func TestSplitOverlapRestartsOnRuneBoundary(t *testing.T) {
	// The overlap restart after a sentence-boundary cut can land inside a
	// multi-byte rune and must back up too.
	text := "Short lead sentence. " + strings.Repeat("日本語テキストの断片", 40)
	s := NewSplitter(120, 25)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Fatalf("chunk %d contains a split rune: %q", i, c.Text)
		}
	}
}

func TestSplitChunkMetadata(t *testing.T) {
	text := "Intro heading text here.\nSome prose with a citation [3,4] in it. More prose follows here.\nFigure 1: the system overview diagram."
	doc := ingest.ParsedDocument{
		Text: text,
		Sections: []models.Section{
			{Label: "Introduction", Start: 0, End: len(text), Ordinal: 0},
		},
		Pages: []ingest.PageRange{{Page: 1, Start: 0, End: len(text)}},
	}
	s := NewSplitter(1000, 150)
	chunks := s.Split("sess", "doc-1", doc)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.SectionLabel != "Introduction" {
		t.Fatalf("section label: %q", c.SectionLabel)
	}
	if len(c.Citations) != 1 || c.Citations[0] != "[3,4]" {
		t.Fatalf("citations: %v", c.Citations)
	}
	if c.PageStart == nil || *c.PageStart != 1 || c.PageEnd == nil || *c.PageEnd != 1 {
		t.Fatalf("page range: %v %v", c.PageStart, c.PageEnd)
	}
	if c.TokenLen <= 0 || c.CharLen != len(c.Text) {
		t.Fatalf("lengths: tokens=%d chars=%d", c.TokenLen, c.CharLen)
	}
}

func TestSplitCaptionFlag(t *testing.T) {
	text := "Figure 2: latency distribution across sessions."
	s := NewSplitter(1000, 150)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if len(chunks) != 1 || !chunks[0].IsCaption {
		t.Fatalf("expected caption-flagged chunk, got %+v", chunks)
	}
}

func TestSplitCitationsScopedToChunk(t *testing.T) {
	// The citation lives in the first sentence only; a later chunk must not
	// inherit it.
	text := "Cited work [12] anchors this sentence. " + syntheticText(40)
	s := NewSplitter(150, 20)
	chunks := s.Split("sess", "doc", bodyDoc(text))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks")
	}
	if len(chunks[0].Citations) == 0 {
		t.Fatalf("first chunk should carry [12]")
	}
	last := chunks[len(chunks)-1]
	if len(last.Citations) != 0 {
		t.Fatalf("last chunk should carry no citations, got %v", last.Citations)
	}
}
