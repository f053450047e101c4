package providers

import (
	"context"
	"math"
	"testing"
	"time"
)

func TestMockEmbedDeterministic(t *testing.T) {
	m := NewMockProvider(64)
	a, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"hello", "world"}})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, _, _ := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"hello", "world"}})
	if len(a) != 2 || len(a[0]) != 64 {
		t.Fatalf("unexpected shape: %d x %d", len(a), len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at %d", i)
		}
	}
}

func TestMockEmbedUnitLength(t *testing.T) {
	m := NewMockProvider(128)
	vectors, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"cosine distance assumes unit vectors"}})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var sum float64
	for _, x := range vectors[0] {
		sum += float64(x) * float64(x)
	}
	if norm := math.Sqrt(sum); math.Abs(norm-1.0) > 1e-3 {
		t.Fatalf("expected unit-length embedding, |v| = %f", norm)
	}
}

func TestMockRerankFavorsOverlap(t *testing.T) {
	m := NewMockProvider(8)
	scores, _, err := m.Rerank(context.Background(), RerankRequest{
		Query: "chunk overlap policy",
		Texts: []string{"the chunk overlap policy is fixed", "unrelated text entirely"},
	})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if scores[0] <= scores[1] {
		t.Fatalf("expected overlap text to score higher: %v", scores)
	}
}

func TestWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errPermanent{}
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single attempt on permanent error, got %d calls", calls)
	}
}

func TestWithRetryRetriesTransient(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errTransient{}
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 attempts, got err=%v calls=%d", err, calls)
	}
}

type errPermanent struct{}

func (errPermanent) Error() string { return "400 bad request" }

type errTransient struct{}

func (errTransient) Error() string { return "connection reset by peer" }
