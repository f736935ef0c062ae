package inference

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/fuse"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/streaming"
)

// State tracks one logical turn through the execution pipeline.
type State int

const (
	StatePending State = iota
	StateAttempting
	StateRetrying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Runner drives one logical turn: the retry loop, circuit-breaker
// attachment, per-attempt timeout, and folding the adapter result back into
// the conversation history.
type Runner struct{}

func NewRunner() *Runner {
	return &Runner{}
}

// Run executes one blocking turn. On success exactly one assistant message is
// appended, carrying the adapter's result text.
func (r *Runner) Run(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	p := c.Provider
	if p == nil {
		return c, errors.WithStack(ErrNoProvider)
	}

	updated, err := r.runWithRetries(ctx, c, p.Call)
	if err != nil {
		return c, err
	}

	return updated.Assistant(updated.LastText), nil
}

// Stream opens a streaming turn. The capability is probed on the adapter;
// the retry loop does not apply, only the breaker's fail-fast gate.
func (r *Runner) Stream(ctx context.Context, c conversation.Conversation) (*streaming.Stream, error) {
	p := c.Provider
	if p == nil {
		return nil, errors.WithStack(ErrNoProvider)
	}
	sp, ok := providers.CanStream(p)
	if !ok {
		return nil, errors.Wrap(providers.ErrStreamingNotSupported, p.Name())
	}

	breaker := breakerFor(c)
	if breaker != nil {
		if err := breaker.Allow(); err != nil {
			return nil, err
		}
	}

	stream, err := sp.Stream(ctx, c)
	if breaker != nil {
		breaker.Record(err)
	}
	return stream, err
}

// Embed executes one embeddings turn through the same retry machinery as
// Run, without appending to the message history.
func (r *Runner) Embed(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	p := c.Provider
	if p == nil {
		return c, errors.WithStack(ErrNoProvider)
	}
	ep, ok := providers.CanEmbed(p)
	if !ok {
		return c, errors.Wrap(providers.ErrEmbeddingsNotSupported, p.Name())
	}

	updated, err := r.runWithRetries(ctx, c, ep.Embeddings)
	if err != nil {
		return c, err
	}
	return updated, nil
}

type callFunc func(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error)

// runWithRetries is the attempt loop. Options.Retries counts additional
// attempts after the first. A missing credential is terminal immediately:
// retrying cannot change credential availability. Exhaustion surfaces the
// last concrete error wrapped in RetriesExhaustedError.
func (r *Runner) runWithRetries(ctx context.Context, c conversation.Conversation, call callFunc) (conversation.Conversation, error) {
	retries := c.Options.RetryCount()
	breaker := breakerFor(c)

	state := StatePending
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		state = StateAttempting
		log.Debug().
			Int("attempt", attempt).
			Int("retries", retries).
			Str("state", state.String()).
			Msg("running inference attempt")

		if breaker != nil {
			if err := breaker.Allow(); err != nil {
				// Fail fast without hitting the network; the attempt still
				// counts against the retry budget.
				lastErr = err
				state = StateRetrying
				continue
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.Options.CallTimeout())
		updated, err := call(attemptCtx, c)
		cancel()

		if breaker != nil {
			breaker.Record(err)
		}

		if err == nil {
			state = StateSucceeded
			log.Debug().Int("attempt", attempt).Str("state", state.String()).Msg("inference attempt succeeded")
			return updated, nil
		}

		if errors.Is(err, providers.ErrMissingAPIKey) {
			state = StateFailed
			return c, err
		}
		if ctx.Err() != nil {
			state = StateFailed
			return c, ctx.Err()
		}

		lastErr = err
		state = StateRetrying
		log.Debug().Err(err).Int("attempt", attempt).Str("state", state.String()).Msg("inference attempt failed")
	}

	return c, &RetriesExhaustedError{Attempts: retries + 1, Last: lastErr}
}

// breakerFor returns the shared breaker requested by the conversation's
// options, scoped to the provider name when none is configured explicitly.
func breakerFor(c conversation.Conversation) *fuse.Breaker {
	if c.Options.Fuse == nil {
		return nil
	}
	cfg := *c.Options.Fuse
	if cfg.Name == "" && c.Provider != nil {
		cfg.Name = c.Provider.Name()
	}
	return fuse.ForName(cfg)
}
