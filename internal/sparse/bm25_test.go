package sparse

import (
	"testing"

	"paperchat/internal/ragerr"
)

var corpus = []string{
	"hybrid retrieval combines dense embeddings with lexical matching",
	"dense embeddings capture semantic similarity between sentences",
	"lexical matching rewards exact keyword overlap",
	"chunking strategies affect retrieval quality",
}

func TestEncodeBeforeFit(t *testing.T) {
	e := NewEncoder()
	if _, err := e.EncodeDocument("anything"); !ragerr.Is(err, ragerr.EncoderNotReady) {
		t.Fatalf("expected EncoderNotReady, got %v", err)
	}
	if _, err := e.EncodeQuery("anything"); !ragerr.Is(err, ragerr.EncoderNotReady) {
		t.Fatalf("expected EncoderNotReady for query, got %v", err)
	}
}

func TestFitAndEncodeDeterministic(t *testing.T) {
	a := NewEncoder()
	a.Fit(corpus)
	b := NewEncoder()
	b.Fit(corpus)

	va, err := a.EncodeDocument(corpus[0])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	vb, _ := b.EncodeDocument(corpus[0])
	if len(va) != len(vb) {
		t.Fatalf("term counts differ")
	}
	for term, w := range va {
		if vb[term] != w {
			t.Fatalf("weight for %q differs: %v vs %v", term, w, vb[term])
		}
	}
	if len(va) == 0 {
		t.Fatalf("expected non-empty weights")
	}
}

func TestRareTermOutweighsCommon(t *testing.T) {
	e := NewEncoder()
	e.Fit(corpus)
	q, err := e.EncodeQuery("retrieval chunking")
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	// "retrieval" appears in two documents, "chunking" in one.
	if q["chunking"] <= q["retrieval"] {
		t.Fatalf("expected chunking idf > retrieval idf: %v", q)
	}
}

func TestUpdateIsIncremental(t *testing.T) {
	e := NewEncoder()
	e.Fit(corpus[:2])
	e.Update(corpus[2:])

	full := NewEncoder()
	full.Fit(corpus)

	if e.State().DocCount != full.State().DocCount {
		t.Fatalf("doc counts differ: %d vs %d", e.State().DocCount, full.State().DocCount)
	}
	if e.State().TotalLen != full.State().TotalLen {
		t.Fatalf("total lengths differ")
	}
	for term, df := range full.State().DF {
		if e.State().DF[term] != df {
			t.Fatalf("df for %q differs", term)
		}
	}
}

func TestStateRoundTrip(t *testing.T) {
	e := NewEncoder()
	e.Fit(corpus)
	restored := NewEncoderFromState(e.State())
	if !restored.Ready() {
		t.Fatalf("restored encoder must be ready")
	}
	a, _ := e.EncodeQuery("dense lexical")
	b, _ := restored.EncodeQuery("dense lexical")
	for term, w := range a {
		if b[term] != w {
			t.Fatalf("restored weight differs for %q", term)
		}
	}
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	got := Tokenize("The quick match of a b analysis")
	want := []string{"quick", "match", "analysis"}
	if len(got) != len(want) {
		t.Fatalf("tokens: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, got[i], want[i])
		}
	}
}
