package providers

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMissingAPIKey is terminal: retrying cannot change credential
// availability, so the orchestrator never retries it.
var ErrMissingAPIKey = errors.New("missing api key")

// ErrStreamingNotSupported is returned when the streaming entry point is
// invoked on an adapter without the capability.
var ErrStreamingNotSupported = errors.New("streaming not supported by this provider")

// ErrEmbeddingsNotSupported is returned when the embeddings entry point is
// invoked on an adapter without the capability.
var ErrEmbeddingsNotSupported = errors.New("embeddings not supported by this provider")

// HTTPError is a non-success HTTP response. It is retryable.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("http error %d: %s", e.Status, body)
}

// UnsupportedDimensionError reports an embeddings request for an output
// dimensionality outside the supported set.
type UnsupportedDimensionError struct {
	Dimension int
}

func (e *UnsupportedDimensionError) Error() string {
	return fmt.Sprintf("unsupported output dimensionality %d (supported: %v)", e.Dimension, SupportedDimensions)
}
