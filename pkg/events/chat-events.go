package events

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypePartial carries one incremental text delta.
	EventTypePartial EventType = "partial"
	// EventTypeFinal closes a stream; it fires exactly once, after the last
	// delta.
	EventTypeFinal EventType = "final"
	// EventTypeError closes a stream with a failure; no final event follows.
	EventTypeError EventType = "error"
)

type Event interface {
	Type() EventType
}

type EventPartial struct {
	EventType  EventType `json:"type"`
	Delta      string    `json:"delta"`
	Completion string    `json:"completion"`
}

func (e *EventPartial) Type() EventType {
	return e.EventType
}

func (e *EventPartial) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.EventType)).Str("delta", e.Delta).Int("completion_len", len(e.Completion))
}

func NewPartialEvent(delta string, completion string) *EventPartial {
	return &EventPartial{
		EventType:  EventTypePartial,
		Delta:      delta,
		Completion: completion,
	}
}

type EventFinal struct {
	EventType EventType `json:"type"`
	Text      string    `json:"text"`
}

func (e *EventFinal) Type() EventType {
	return e.EventType
}

func (e *EventFinal) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.EventType)).Int("text_len", len(e.Text))
}

func NewFinalEvent(text string) *EventFinal {
	return &EventFinal{
		EventType: EventTypeFinal,
		Text:      text,
	}
}

type EventError struct {
	EventType EventType `json:"type"`
	ErrorMsg  string    `json:"error"`

	// cause is the original error, kept for in-process consumers so that
	// errors.Is and errors.As still see the source error. It does not
	// survive serialization.
	cause error
}

func (e *EventError) Type() EventType {
	return e.EventType
}

// Err returns the original error when the event was built in-process, and a
// reconstructed one after a JSON round trip.
func (e *EventError) Err() error {
	if e.cause != nil {
		return e.cause
	}
	return errors.New(e.ErrorMsg)
}

func (e *EventError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.EventType)).Str("error", e.ErrorMsg)
}

func NewErrorEvent(err error) *EventError {
	return &EventError{
		EventType: EventTypeError,
		ErrorMsg:  err.Error(),
		cause:     err,
	}
}

// NewEventFromJSON decodes a serialized event by its type tag.
func NewEventFromJSON(payload []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, errors.Wrap(err, "failed to read event type")
	}

	switch head.Type {
	case EventTypePartial:
		var e EventPartial
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EventTypeFinal:
		var e EventFinal
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EventTypeError:
		var e EventError
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return &e, nil
	default:
		return nil, errors.Errorf("unknown event type %q", head.Type)
	}
}
