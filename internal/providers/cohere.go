package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CohereRerankProvider scores candidates with Cohere's cross-encoder rerank
// endpoint.
type CohereRerankProvider struct {
	keyName string
	apiKey  string
	model   string
	client  *http.Client
}

func NewCohereRerankProvider(keyName string) *CohereRerankProvider {
	return &CohereRerankProvider{
		keyName: keyName,
		apiKey:  resolveKey("PAPERCHAT_COHERE_API_KEY", keyName),
		model:   envOr("PAPERCHAT_COHERE_RERANK_MODEL", "rerank-v3.5"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *CohereRerankProvider) Rerank(ctx context.Context, req RerankRequest) ([]float64, ProviderInfo, error) {
	info := ProviderInfo{Name: "cohere", Model: c.model, Key: c.keyName}
	if c.apiKey == "" {
		return nil, info, fmt.Errorf("cohere key missing for alias %q", c.keyName)
	}
	if len(req.Texts) == 0 {
		return []float64{}, info, nil
	}
	payload, _ := json.Marshal(map[string]any{
		"model":     c.model,
		"query":     req.Query,
		"documents": req.Texts,
		"top_n":     len(req.Texts),
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.cohere.com/v2/rerank", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, info, fmt.Errorf("cohere rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, fmt.Errorf("cohere rerank error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode rerank response: %w", err)
	}
	scores := make([]float64, len(req.Texts))
	for _, r := range parsed.Results {
		if r.Index >= 0 && r.Index < len(scores) {
			scores[r.Index] = r.RelevanceScore
		}
	}
	return scores, info, nil
}
