package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	ollama "github.com/ollama/ollama/api"
)

// Embedder produces dense vectors for text. Implementations must return
// exactly one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// OllamaEmbedder embeds text through an Ollama server.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

// NewOllamaEmbedder creates an embedder against the given Ollama base URL.
func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama URL %q: %w", baseURL, err)
	}

	return &OllamaEmbedder{
		client: ollama.NewClient(parsed, http.DefaultClient),
		model:  model,
	}, nil
}

// Embed returns the vector for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text. A response with the wrong
// vector count is an error, never truncated.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.Embed(ctx, &ollama.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, embeddingError(fmt.Errorf("ollama embed request: %w", err))
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, embeddingError(fmt.Errorf(
			"ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts)))
	}
	for i, vec := range resp.Embeddings {
		if len(vec) == 0 {
			return nil, embeddingError(fmt.Errorf("empty embedding for input %d", i))
		}
	}

	slog.Debug("Embedded texts", "model", e.model, "count", len(texts), "dim", len(resp.Embeddings[0]))
	return resp.Embeddings, nil
}

// Model returns the configured embedding model name.
func (e *OllamaEmbedder) Model() string {
	return e.model
}
