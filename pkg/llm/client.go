// Package llm abstracts the text-completion backends used for enrichment.
// Two interchangeable implementations exist: the hosted Anthropic API and any
// OpenAI-compatible endpoint (hosted OpenAI or a locally served quantized
// model). Callers never know which one is active.
package llm

import "context"

// Message is a single conversational message.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64
}

// Client produces text completions.
type Client interface {
	// Complete returns the completion text for the given request.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name identifies the backend for logging.
	Name() string
}

// Embedder computes embedding vectors for a batch of texts in one call.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}
