package providers

import (
	"fmt"

	"paperchat/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

type NamedRerankProvider struct {
	Ref      ProviderRef
	Provider RerankProvider
}

// Manager holds the configured provider chains. The first provider of each
// kind is the primary; the mock provider backstops empty configuration so the
// service always starts.
type Manager struct {
	llmProviders    []NamedLLMProvider
	embedProviders  []NamedEmbedProvider
	rerankProviders []NamedRerankProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	for _, ref := range ParseProviderList(cfg.RerankProviders) {
		p, err := buildProvider(ref, cfg.EmbedDim)
		if err != nil {
			return nil, err
		}
		rerank, ok := p.(RerankProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support reranking", ref.Raw)
		}
		m.rerankProviders = append(m.rerankProviders, NamedRerankProvider{Ref: ref, Provider: rerank})
	}
	mock := NewMockProvider(cfg.EmbedDim)
	mockRef := ProviderRef{Raw: "mock", Name: "mock"}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: mockRef, Provider: mock}}
	}
	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: mockRef, Provider: mock}}
	}
	if len(m.rerankProviders) == 0 {
		m.rerankProviders = []NamedRerankProvider{{Ref: mockRef, Provider: mock}}
	}
	return m, nil
}

func buildProvider(ref ProviderRef, embedDim int) (any, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(embedDim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	case "cohere":
		return NewCohereRerankProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", ref.Raw)
	}
}

func (m *Manager) LLM() (LLMProvider, ProviderRef) {
	return m.llmProviders[0].Provider, m.llmProviders[0].Ref
}

func (m *Manager) Embedder() (EmbeddingProvider, ProviderRef) {
	return m.embedProviders[0].Provider, m.embedProviders[0].Ref
}

func (m *Manager) Reranker() (RerankProvider, ProviderRef) {
	return m.rerankProviders[0].Provider, m.rerankProviders[0].Ref
}
