package ingest

import "testing"

func TestCitationMarkers(t *testing.T) {
	text := "prior work [3,4] showed gains [5-7], see also (Smith et al., 2020) and (Jones, 2019)."
	got := CitationMarkers(text)
	want := []string{"[3,4]", "[5-7]", "(Smith et al., 2020)", "(Jones, 2019)"}
	if len(got) != len(want) {
		t.Fatalf("markers: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("marker %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestCitationMarkersNone(t *testing.T) {
	if got := CitationMarkers("no citations here (really) in [brackets]"); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}

func TestIsCaptionLine(t *testing.T) {
	cases := map[string]bool{
		"Figure 1: the pipeline": true,
		"table 12 shows results": true,
		"  Figure 3.":            true,
		"configure 1 thing":      false,
		"The table of contents":  false,
	}
	for line, want := range cases {
		if got := IsCaptionLine(line); got != want {
			t.Fatalf("caption %q: got %v want %v", line, got, want)
		}
	}
}
