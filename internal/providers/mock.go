package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// MockProvider is the deterministic default used when no real backend is
// configured. It supports embedding, generation and reranking so the whole
// pipeline runs offline (and in tests) without network access.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if len(req.Context) == 0 {
		return GenerateResponse{Text: "No session documents matched this question. From general knowledge (not grounded in the session's papers): the mock backend cannot elaborate further."}, info, nil
	}
	b := strings.Builder{}
	b.WriteString("Based on the provided context:")
	for i := range req.Context {
		fmt.Fprintf(&b, " [S%d]", i+1)
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

// Rerank scores each candidate by term overlap with the query. Deterministic
// and crude, but enough to exercise the rerank path end to end.
func (m *MockProvider) Rerank(ctx context.Context, req RerankRequest) ([]float64, ProviderInfo, error) {
	_ = ctx
	queryTerms := map[string]struct{}{}
	for _, t := range strings.Fields(strings.ToLower(req.Query)) {
		queryTerms[strings.Trim(t, ".,;:!?")] = struct{}{}
	}
	scores := make([]float64, len(req.Texts))
	for i, text := range req.Texts {
		seen := map[string]struct{}{}
		hits := 0
		fields := strings.Fields(strings.ToLower(text))
		for _, t := range fields {
			t = strings.Trim(t, ".,;:!?")
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			if _, ok := queryTerms[t]; ok {
				hits++
			}
		}
		if len(fields) > 0 {
			scores[i] = float64(hits) / float64(len(queryTerms)+1)
		}
	}
	return scores, ProviderInfo{Name: "mock", Model: "mock-rerank-v1", Key: "mock"}, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)+1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
