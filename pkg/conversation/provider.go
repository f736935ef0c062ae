package conversation

import (
	"context"

	"github.com/go-go-golems/parley/pkg/streaming"
)

// Provider is the capability contract a backend implements. BuildRequest and
// Call are required; streaming and embeddings are optional capabilities probed
// by type assertion against StreamingProvider and EmbeddingsProvider.
type Provider interface {
	// Name identifies the provider for logging, pricing, and breaker scoping.
	Name() string

	// BuildRequest deterministically maps the conversation into the vendor's
	// native request shape. It is pure and performs no I/O.
	BuildRequest(c Conversation) (interface{}, error)

	// Call performs one blocking request/response round trip. On success the
	// returned conversation carries LastText (or LastEmbedding) and the
	// cost/usage accumulators incremented from the vendor's reported usage.
	Call(ctx context.Context, c Conversation) (Conversation, error)
}

// StreamingProvider is implemented by adapters that can stream text deltas.
type StreamingProvider interface {
	Provider

	// Stream opens a streaming connection and returns a lazy, forward-only,
	// non-restartable sequence of text deltas.
	Stream(ctx context.Context, c Conversation) (*streaming.Stream, error)
}

// EmbeddingsProvider is implemented by adapters that can compute embeddings.
type EmbeddingsProvider interface {
	Provider

	// Embeddings computes an embedding for the concatenated text content of
	// the conversation and stores it in LastEmbedding.
	Embeddings(ctx context.Context, c Conversation) (Conversation, error)
}
