package util

import (
	"strings"
	"testing"
)

func TestSnippetCleansAndTruncates(t *testing.T) {
	in := "Hello\x00   world \n\t again"
	out := Snippet(in, 100)
	if out != "Hello world again" {
		t.Fatalf("unexpected snippet: %q", out)
	}
	if got := Snippet(strings.Repeat("x", 50), 10); !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got)
	}
}

func TestEvidenceSnippetPicksRelevantSentence(t *testing.T) {
	chunk := "This paper studies chunking for retrieval. It reports a latency reduction of 40%. Appendix text follows."
	out := EvidenceSnippet(chunk, "What latency reduction was reported?", 200)
	if !strings.Contains(strings.ToLower(out), "latency") {
		t.Fatalf("expected latency sentence, got %q", out)
	}
}

func TestSanitizeTextDropsControls(t *testing.T) {
	if got := SanitizeText("a\x00b\x01c\nd"); got != "abc\nd" {
		t.Fatalf("unexpected sanitize output: %q", got)
	}
}
