package domain

import "context"

// LLMProvider is the gateway interface for any chat-completion backend.
// Implementations translate between the internal message/tool shape and
// the vendor wire format; they do not retry or cache.
type LLMProvider interface {
	// Chat sends a request and returns a complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// Name returns the provider's identifier (e.g., "openai", "ollama").
	Name() string
}
