package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Credentials supplies the main chat endpoint's connection details for the
// "llm" provider, which shares them instead of storing its own.
type Credentials struct {
	BaseURL string
	APIKey  string
}

// Manager resolves the active configuration to a concrete Embedder. The
// client is built lazily and cached until the configuration changes.
type Manager struct {
	store    *ConfigStore
	llmCreds func() Credentials

	mu       sync.Mutex
	cached   Embedder
	cacheKey string
}

// NewManager wires the config store and an optional supplier of main-LLM
// credentials. llmCreds may be nil if the "llm" provider is never used.
func NewManager(store *ConfigStore, llmCreds func() Credentials) *Manager {
	return &Manager{store: store, llmCreds: llmCreds}
}

// Enabled reports whether an embedding configuration is currently active.
func (m *Manager) Enabled() bool {
	return m.store.Active() != nil
}

// Invalidate drops the cached client. Call after any configuration change.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.cacheKey = ""
	m.mu.Unlock()
}

// Embedder returns a client for the active configuration, or ErrNotEnabled
// when none is active.
func (m *Manager) Embedder() (Embedder, error) {
	active := m.store.Active()
	if active == nil {
		return nil, ErrNotEnabled
	}

	key := active.Name + "|" + active.Provider + "|" + active.BaseURL + "|" + active.Model

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached != nil && m.cacheKey == key {
		return m.cached, nil
	}

	emb, err := m.build(*active)
	if err != nil {
		return nil, err
	}
	m.cached = emb
	m.cacheKey = key
	return emb, nil
}

// Embed is a convenience that resolves the active embedder and embeds text.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := m.Embedder()
	if err != nil {
		return nil, err
	}
	return emb.Embed(ctx, text)
}

func (m *Manager) build(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return newOllamaEmbedder(cfg)
	case ProviderOpenAI:
		return newOpenAIEmbedder(cfg), nil
	case ProviderLLM:
		if m.llmCreds == nil {
			return nil, fmt.Errorf("embedding: no main LLM credentials available")
		}
		creds := m.llmCreds()
		cfg.BaseURL = creds.BaseURL
		cfg.APIKey = creds.APIKey
		return newOpenAIEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
