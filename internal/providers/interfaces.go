package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation string   `json:"operation"`
	System    string   `json:"system,omitempty"`
	Prompt    string   `json:"prompt"`
	Context   []string `json:"context"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type RerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// RerankProvider scores each candidate text for relevance to the query.
// The returned slice is aligned with req.Texts; higher is more relevant.
type RerankProvider interface {
	Rerank(ctx context.Context, req RerankRequest) ([]float64, ProviderInfo, error)
}
