package ragerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(UpsertFailure, "index.Index", errors.New("connection reset"))
	wrapped := fmt.Errorf("ingest document d1: %w", base)
	if !Is(wrapped, UpsertFailure) {
		t.Fatalf("expected UpsertFailure kind through wrap")
	}
	if Is(wrapped, EncoderNotReady) {
		t.Fatalf("unexpected EncoderNotReady match")
	}
	if got := KindOf(wrapped); got != UpsertFailure {
		t.Fatalf("KindOf: got %s", got)
	}
}

func TestKindOfUntyped(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind, got %s", got)
	}
}
