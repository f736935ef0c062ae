package async

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/events"
	"github.com/go-go-golems/parley/pkg/inference"
)

// Callbacks receives stream events in delivery order. OnDone fires exactly
// once, after the last delta, with either the full text or the stream error.
type Callbacks struct {
	OnDelta func(delta string, completion string)
	OnDone  func(text string, err error)
}

const streamTopic = "chat"

// StreamWithCallbacks opens a streaming turn and pushes its deltas through an
// in-process event router to the callbacks. Delivery order matches emission
// order because publishing blocks until the handler acks. The returned task
// settles with the full concatenated text once the callbacks have been
// drained.
func StreamWithCallbacks(ctx context.Context, c conversation.Conversation, r *inference.Runner, cb Callbacks) *Task[string] {
	return Submit(ctx, func(ctx context.Context) (string, error) {
		router, err := events.NewEventRouter()
		if err != nil {
			return "", err
		}
		defer func() {
			if err := router.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close stream event router")
			}
		}()

		// recvErr holds the original stream error so the callback keeps its
		// errors.Is identity. The serialized event only carries the message.
		var recvErr error
		var streamErr error
		router.AddHandler("stream-callbacks", streamTopic, func(e events.Event) error {
			switch ev := e.(type) {
			case *events.EventPartial:
				if cb.OnDelta != nil {
					cb.OnDelta(ev.Delta, ev.Completion)
				}
			case *events.EventFinal:
				if cb.OnDone != nil {
					cb.OnDone(ev.Text, nil)
				}
			case *events.EventError:
				streamErr = recvErr
				if streamErr == nil {
					streamErr = ev.Err()
				}
				if cb.OnDone != nil {
					cb.OnDone("", streamErr)
				}
			}
			return nil
		})

		routerCtx, cancelRouter := context.WithCancel(ctx)
		defer cancelRouter()

		routerDone := make(chan error, 1)
		go func() {
			routerDone <- router.Run(routerCtx)
		}()

		select {
		case <-router.Running():
		case <-ctx.Done():
			return "", ctx.Err()
		}

		stream, err := r.Stream(ctx, c)
		if err != nil {
			return "", err
		}
		defer stream.Close()

		var sb strings.Builder
		for {
			delta, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				recvErr = err
				if pubErr := router.PublishEvent(streamTopic, events.NewErrorEvent(err)); pubErr != nil {
					log.Warn().Err(pubErr).Msg("failed to publish stream error event")
				}
				drainRouter(cancelRouter, routerDone)
				return "", err
			}
			sb.WriteString(delta)
			if err := router.PublishEvent(streamTopic, events.NewPartialEvent(delta, sb.String())); err != nil {
				return "", err
			}
		}

		if err := router.PublishEvent(streamTopic, events.NewFinalEvent(sb.String())); err != nil {
			return "", err
		}
		drainRouter(cancelRouter, routerDone)

		return sb.String(), streamErr
	})
}

// drainRouter stops the router and waits for its handlers to finish so that
// every published event has been delivered before the task settles.
func drainRouter(cancel context.CancelFunc, done <-chan error) {
	cancel()
	<-done
}
