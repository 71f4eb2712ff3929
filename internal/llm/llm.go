package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers for the analysis pipeline.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder converts texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ErrNotImplemented is returned by the placeholder implementations.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	_ = ctx
	_ = systemPrompt
	_ = userPrompt
	return "", ErrNotImplemented
}

// PlaceholderEmbedder is a stub implementation until provider wiring is added.
type PlaceholderEmbedder struct{}

// Embed returns ErrNotImplemented.
func (PlaceholderEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	_ = ctx
	_ = texts
	return nil, ErrNotImplemented
}
