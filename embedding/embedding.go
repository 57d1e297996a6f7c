// Package embedding manages embedding provider configurations and produces
// vectors through the active one. Up to ten named configurations are kept on
// disk; exactly one may be active, and semantic search is enabled only while
// one is.
package embedding

import (
	"context"
	"errors"
)

// ErrNotEnabled is returned when no embedding configuration is active.
// Callers distinguish this from an empty search result.
var ErrNotEnabled = errors.New("embedding: no active configuration")

// Embedder turns text into a vector using one concrete provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	// ProviderLLM reuses the credentials of the main chat endpoint.
	ProviderLLM = "llm"
)

// Config is one named embedding endpoint.
type Config struct {
	Name       string `yaml:"name" json:"name"`
	Provider   string `yaml:"provider" json:"provider"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Active     bool   `yaml:"active" json:"active"`
}

func (c Config) validate() error {
	if c.Name == "" {
		return errors.New("embedding: config name is required")
	}
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderLLM:
	default:
		return errors.New("embedding: unknown provider " + c.Provider)
	}
	if c.Model == "" {
		return errors.New("embedding: model is required")
	}
	return nil
}
