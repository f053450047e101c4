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

// OllamaProvider supports local, free embeddings and generation via Ollama.
// Example models: nomic-embed-text for embeddings, llama3.1 for generation.
type OllamaProvider struct {
	alias   string
	baseURL string
	client  *http.Client
}

func NewOllamaProvider(alias string) *OllamaProvider {
	baseURL := strings.TrimSpace(os.Getenv("PAPERCHAT_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		alias:   alias,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	model := envOr("PAPERCHAT_OLLAMA_EMBED_MODEL", "nomic-embed-text")
	info := ProviderInfo{Name: "ollama", Model: model, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		payload, _ := json.Marshal(map[string]any{"model": model, "prompt": text})
		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(payload))
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(httpReq)
		if err != nil {
			return nil, info, fmt.Errorf("ollama embedding request failed: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, info, fmt.Errorf("ollama embedding error %d: %s", resp.StatusCode, string(body))
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, info, fmt.Errorf("decode ollama embedding: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, info, fmt.Errorf("ollama returned empty embedding")
		}
		out = append(out, parsed.Embedding)
	}
	return out, info, nil
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	model := envOr("PAPERCHAT_OLLAMA_CHAT_MODEL", "llama3.1")
	info := ProviderInfo{Name: "ollama", Model: model, Key: o.alias}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = prompt + "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	payload, _ := json.Marshal(map[string]any{
		"model":  model,
		"system": req.System,
		"prompt": prompt,
		"stream": false,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode ollama response: %w", err)
	}
	return GenerateResponse{Text: parsed.Response}, info, nil
}
