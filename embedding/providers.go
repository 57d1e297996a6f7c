package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ollamaEmbedder embeds through a local or remote Ollama instance.
type ollamaEmbedder struct {
	cli        *api.Client
	model      string
	dimensions int
}

func newOllamaEmbedder(cfg Config) (*ollamaEmbedder, error) {
	base := cfg.BaseURL
	if base == "" {
		base = "http://localhost:11434"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url: %w", err)
	}
	return &ollamaEmbedder{
		cli:        api.NewClient(u, http.DefaultClient),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (o *ollamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := &api.EmbeddingRequest{
		Model:     o.model,
		Prompt:    text,
		KeepAlive: &api.Duration{Duration: 60 * time.Minute},
	}
	resp, err := o.cli.Embeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}

	emb := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		emb[i] = float32(v)
	}
	if o.dimensions == 0 {
		o.dimensions = len(emb)
	}
	return emb, nil
}

func (o *ollamaEmbedder) Dimensions() int { return o.dimensions }

// openaiEmbedder embeds through any OpenAI-compatible embeddings endpoint.
type openaiEmbedder struct {
	cli        openai.Client
	model      string
	dimensions int
}

func newOpenAIEmbedder(cfg Config) *openaiEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &openaiEmbedder{
		cli:        openai.NewClient(opts...),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (o *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(o.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}
	resp, err := o.cli.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}

	emb := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		emb[i] = float32(v)
	}
	if o.dimensions == 0 {
		o.dimensions = len(emb)
	}
	return emb, nil
}

func (o *openaiEmbedder) Dimensions() int { return o.dimensions }
