package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OpenAIProvider uses the standard OpenAI REST APIs when a key is configured.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	client  *http.Client
}

func NewOpenAIProvider(keyName string) *OpenAIProvider {
	return &OpenAIProvider{
		keyName: keyName,
		apiKey:  resolveKey("PAPERCHAT_OPENAI_API_KEY", keyName),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (o *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	model := envOr("PAPERCHAT_OPENAI_EMBED_MODEL", "text-embedding-3-small")
	info := ProviderInfo{Name: "openai", Model: model, Key: o.keyName}
	if o.apiKey == "" {
		return nil, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	payload, _ := json.Marshal(map[string]any{"model": model, "input": req.Inputs})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/embeddings", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, info, fmt.Errorf("openai embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, info, fmt.Errorf("openai embedding error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, info, fmt.Errorf("decode embedding response: %w", err)
	}
	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		out = append(out, d.Embedding)
	}
	return out, info, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := envOr("PAPERCHAT_OPENAI_CHAT_MODEL", "gpt-4o-mini")
	info := ProviderInfo{Name: "openai", Model: model, Key: o.keyName}
	if o.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("openai key missing for alias %q", o.keyName)
	}
	system := req.System
	if system == "" {
		system = "You are a research assistant. Answer using the provided context and cite section names."
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = prompt + "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	payload, _ := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.openai.com/v1/chat/completions", bytes.NewReader(payload))
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("openai chat request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, fmt.Errorf("openai chat error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, info, fmt.Errorf("openai chat returned no choices")
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, info, nil
}

func resolveKey(envBase, alias string) string {
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv(envBase + "_" + strings.ToUpper(alias))); v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(envBase))
}

func envOr(k, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return fallback
}
