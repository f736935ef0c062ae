package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoProvider is returned when a conversation has no execution target.
var ErrNoProvider = errors.New("no provider configured on conversation")

// RetriesExhaustedError wraps the last concrete attempt error once the retry
// budget is spent.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all %d attempts failed", e.Attempts)
	}
	return fmt.Sprintf("all %d attempts failed, last error: %s", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Last
}
