package ingest

import "testing"

const paperText = `Deep Retrieval for Scholarly Question Answering
Jane Smith, Wei Chen and Ada L. Byron
Proceedings of the 2021 Conference on Empirical Methods

Abstract
We study retrieval over scholarly papers.

1. Introduction
Prior work [3,4] showed strong results (Smith et al., 2020).

2. Methods
We chunk documents by section. Figure 1 shows the pipeline.

References
[1] J. Smith. Retrieval. 2019.
`

func TestDetectSections(t *testing.T) {
	d := NewRegexSectionDetector()
	sections := d.Detect(paperText)

	labels := make([]string, 0, len(sections))
	for _, s := range sections {
		labels = append(labels, s.Label)
	}
	want := []string{"Body", "Abstract", "Introduction", "Methods", "References"}
	if len(labels) != len(want) {
		t.Fatalf("got %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("section %d: got %s want %s (%v)", i, labels[i], want[i], labels)
		}
	}

	for i, s := range sections {
		if s.Ordinal != i {
			t.Fatalf("ordinal %d != position %d", s.Ordinal, i)
		}
		if i > 0 && s.Start != sections[i-1].End {
			t.Fatalf("gap between sections %d and %d", i-1, i)
		}
	}
	if sections[0].Start != 0 || sections[len(sections)-1].End != len(paperText) {
		t.Fatalf("sections do not cover full text")
	}
}

func TestDetectSectionsNoHeadings(t *testing.T) {
	d := NewRegexSectionDetector()
	text := "just some unstructured text\nwith no headings at all"
	sections := d.Detect(text)
	if len(sections) != 1 || sections[0].Label != BodyLabel {
		t.Fatalf("expected single Body section, got %v", sections)
	}
	if sections[0].Start != 0 || sections[0].End != len(text) {
		t.Fatalf("Body section must span the whole text")
	}
}

func TestDetectSectionsNumberedHeading(t *testing.T) {
	d := NewRegexSectionDetector()
	text := "3.2 Results\nnumbers here\n"
	sections := d.Detect(text)
	if len(sections) != 1 || sections[0].Label != "Results" {
		t.Fatalf("expected Results, got %v", sections)
	}
}
