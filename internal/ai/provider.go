package ai

import "context"

type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Embedder is an optional interface. Providers may support text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
