package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/helpers"
)

// EventRouter fans stream events out to handlers over an in-process
// gochannel pubsub. Publishing blocks until the subscriber acks, so each
// topic's handler sees events in publish order.
type EventRouter struct {
	logger     watermill.LoggerAdapter
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

type EventRouterOption func(*EventRouter)

func WithVerbose(verbose bool) EventRouterOption {
	return func(r *EventRouter) {
		if verbose {
			r.logger = helpers.NewWatermill(log.Logger)
		}
	}
}

func NewEventRouter(options ...EventRouterOption) (*EventRouter, error) {
	ret := &EventRouter{
		logger: watermill.NopLogger{},
	}

	for _, o := range options {
		o(ret)
	}

	goPubSub := gochannel.NewGoChannel(gochannel.Config{
		BlockPublishUntilSubscriberAck: true,
	}, ret.logger)
	ret.Publisher = goPubSub
	ret.Subscriber = goPubSub

	router, err := message.NewRouter(message.RouterConfig{}, ret.logger)
	if err != nil {
		return nil, err
	}
	ret.router = router

	return ret, nil
}

// PublishEvent serializes and publishes one event to a topic.
func (e *EventRouter) PublishEvent(topic string, event Event) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return e.Publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), b))
}

// AddHandler registers a no-publish handler that decodes events and passes
// them to f. Decoding failures are logged and skipped rather than killing the
// handler.
func (e *EventRouter) AddHandler(name string, topic string, f func(Event) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, func(msg *message.Message) error {
		event, err := NewEventFromJSON(msg.Payload)
		if err != nil {
			log.Error().Err(err).Str("message_id", msg.UUID).Msg("failed to parse event payload")
			return nil
		}
		return f(event)
	})
}

func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

// Running is closed once all handlers are started.
func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

func (e *EventRouter) Close() error {
	log.Debug().Msg("closing event router publisher")
	if err := e.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close publisher")
	}
	return e.router.Close()
}
