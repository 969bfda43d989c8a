package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/docchat/internal/models"
	"golang.org/x/time/rate"
)

type EmbedderConfig struct {
	Model     string
	BaseURL   string  // Ollama server URL
	VectorDim int     // expected embedding dimensionality
	RateLimit float64 // embedding calls per second
}

// EmbeddingClient is the black-box text -> vector function.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder wraps the embedding model with rate limiting and a
// dimensionality check on every returned vector.
type Embedder struct {
	config  EmbedderConfig
	client  EmbeddingClient
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return NewEmbedderWithClient(config, client), nil
}

// NewEmbedderWithClient injects the embedding client directly.
func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}

	for i, vector := range vectors {
		if len(vector) != e.config.VectorDim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				models.ErrEmbedding, i, len(vector), e.config.VectorDim)
		}
	}

	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected a single vector, got %d", models.ErrEmbedding, len(vectors))
	}
	return vectors[0], nil
}
