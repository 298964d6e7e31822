// Package provider defines the external contracts ragcore consumes for LLM
// backends. Concrete wire formats (HTTP bodies, SDK clients) are
// deliberately out of scope; callers supply an implementation of
// LLMProvider backed by whatever transport they use.
package provider

import (
	"context"

	"github.com/aman-cerp/ragcore/internal/embedding"
)

// CompletionRequest is the input to a single completion call.
type CompletionRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Metadata    map[string]any
}

// CompletionResponse is the result of a completion call.
type CompletionResponse struct {
	Text     string
	Metadata map[string]any
}

// StreamChunk is one element of a streaming completion. The stream is
// finite and not restartable: once IsDone is true, no further chunks
// follow.
type StreamChunk struct {
	TextChunk string
	IsDone    bool
	Metadata  map[string]any
}

// LLMProvider is the contract for a remote chat/completion/embedding
// backend. Implementations are supplied by the application; ragcore never
// talks to a concrete provider's wire format directly.
type LLMProvider interface {
	// Complete returns a single completion for req.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// StreamComplete returns a channel of chunks for req. The channel is
	// closed after the chunk with IsDone=true (or on error/ctx cancellation).
	StreamComplete(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)

	// GetEmbeddings returns the embedding vector for text.
	GetEmbeddings(ctx context.Context, text string) (embedding.Vector, error)

	// Initialize prepares the provider with backend-specific configuration.
	Initialize(ctx context.Context, config map[string]any) error

	// Close releases provider resources.
	Close() error
}
