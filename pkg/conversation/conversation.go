package conversation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/media"
)

// Conversation is the central value tracking message history, provider
// selection, and accumulated cost/usage. Every mutator returns a new logical
// state; callers must treat prior references as immutable snapshots and keep
// single-writer semantics per value.
type Conversation struct {
	Provider Provider
	Model    string
	Messages []*Message

	// LastText and LastEmbedding hold the last successful output, overwritten
	// on each successful execution.
	LastText      string
	LastEmbedding []float64

	Session string

	// Cost and TokensUsed only ever grow; NewSession does not reset them.
	Cost       float64
	TokensUsed int

	// Errs holds locally captured validation errors, most recent first.
	// They never block further mutation.
	Errs []error

	Options Options
}

// New returns an empty conversation with a fresh session token.
func New() Conversation {
	return Conversation{
		Session: uuid.NewString(),
	}
}

func (c Conversation) WithProvider(p Provider) Conversation {
	c.Provider = p
	return c
}

func (c Conversation) WithModel(model string) Conversation {
	c.Model = model
	return c
}

// Opts merges new option entries into the existing ones, new values winning
// on collision.
func (c Conversation) Opts(o Options) Conversation {
	c.Options = c.Options.Merge(o)
	return c
}

// System appends a system message. Adapters hoist the first system message
// out of the turn sequence into their dedicated field.
func (c Conversation) System(text string) Conversation {
	return c.appendMessage(NewMessage(RoleSystem, text))
}

// User appends a user message with plain string content.
func (c Conversation) User(text string) Conversation {
	return c.appendMessage(NewMessage(RoleUser, text))
}

// Assistant appends an assistant message. The orchestrator uses this to fold
// a successful turn back into the history.
func (c Conversation) Assistant(text string) Conversation {
	return c.appendMessage(NewMessage(RoleAssistant, text))
}

// Image attaches an image to the pending user turn. The input may be raw
// base64, a data: URL, a remote URL, or a local path; resolution failures are
// recorded in Errs and the chain continues.
func (c Conversation) Image(input string, mimeType ...string) Conversation {
	resolved, err := media.Resolve(input)
	if err != nil {
		return c.recordError(errors.Wrap(err, "failed to attach image"))
	}
	mt := resolved.MimeType
	if len(mimeType) > 0 && mimeType[0] != "" {
		mt = mimeType[0]
	}
	return c.appendPart(NewImagePart(resolved.Content, mt))
}

// MustImage is the raising variant of Image.
func (c Conversation) MustImage(input string, mimeType ...string) Conversation {
	before := len(c.Errs)
	ret := c.Image(input, mimeType...)
	if len(ret.Errs) > before {
		panic(ret.Errs[0])
	}
	return ret
}

// Audio attaches an audio payload to the pending user turn. Same resolution
// rules and error handling as Image.
func (c Conversation) Audio(input string) Conversation {
	resolved, err := media.Resolve(input)
	if err != nil {
		return c.recordError(errors.Wrap(err, "failed to attach audio"))
	}
	return c.appendPart(NewAudioPart(resolved.Content, resolved.MimeType))
}

// MustAudio is the raising variant of Audio.
func (c Conversation) MustAudio(input string) Conversation {
	before := len(c.Errs)
	ret := c.Audio(input)
	if len(ret.Errs) > before {
		panic(ret.Errs[0])
	}
	return ret
}

// File attaches an arbitrary file payload to the pending user turn.
func (c Conversation) File(input string, filename string) Conversation {
	resolved, err := media.Resolve(input)
	if err != nil {
		return c.recordError(errors.Wrap(err, "failed to attach file"))
	}
	if filename == "" {
		filename = resolved.Filename
	}
	return c.appendPart(NewFilePart(resolved.Content, resolved.MimeType, filename))
}

// RemoveMessage filters the history by message identity. Removing an unknown
// id is a no-op, never an error.
func (c Conversation) RemoveMessage(id uuid.UUID) Conversation {
	ret := make([]*Message, 0, len(c.Messages))
	removed := false
	for _, m := range c.Messages {
		if !removed && m.ID == id {
			removed = true
			continue
		}
		ret = append(ret, m)
	}
	c.Messages = ret
	return c
}

// NewSession clears the message history and assigns a fresh session token,
// preserving provider, model, options, and the cost/usage accumulators.
func (c Conversation) NewSession() Conversation {
	c.Messages = nil
	c.Session = uuid.NewString()
	return c
}

// AddUsage accrues cost and token counts. Negative deltas are ignored so the
// accumulators stay monotone.
func (c Conversation) AddUsage(cost float64, tokens int) Conversation {
	if cost > 0 {
		c.Cost += cost
	}
	if tokens > 0 {
		c.TokensUsed += tokens
	}
	return c
}

// LastError returns the most recently recorded local error, or nil.
func (c Conversation) LastError() error {
	if len(c.Errs) == 0 {
		return nil
	}
	return c.Errs[0]
}

// EmbeddingInput concatenates all text content in message order to form the
// embedding input.
func (c Conversation) EmbeddingInput() string {
	var parts []string
	for _, m := range c.Messages {
		if s := m.ContentString(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// View renders the history for debugging and CLI output.
func (c Conversation) View() string {
	var sb strings.Builder
	for _, m := range c.Messages {
		sb.WriteString(m.View())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (c Conversation) appendMessage(m *Message) Conversation {
	c.Messages = append(c.messagesCopy(), m)
	return c
}

// appendPart targets the most recent message if and only if it is a user
// message; otherwise a new user message is synthesized. Plain string content
// is promoted to a parts list headed by a synthesized text part.
func (c Conversation) appendPart(p *ContentPart) Conversation {
	n := len(c.Messages)
	if n == 0 || c.Messages[n-1].Role != RoleUser {
		return c.appendMessage(NewMessage(RoleUser, "", WithParts(p)))
	}

	msgs := c.messagesCopy()
	last := msgs[n-1].Clone()
	if !last.HasParts() && last.Text != "" {
		last.Parts = []*ContentPart{NewTextPart(last.Text)}
		last.Text = ""
	}
	last.Parts = append(last.Parts, p)
	msgs[n-1] = last
	c.Messages = msgs
	return c
}

func (c Conversation) messagesCopy() []*Message {
	return append([]*Message(nil), c.Messages...)
}

func (c Conversation) recordError(err error) Conversation {
	log.Debug().Err(err).Msg("recording conversation validation error")
	c.Errs = append([]error{err}, c.Errs...)
	return c
}

func (c Conversation) String() string {
	return fmt.Sprintf("Conversation{session: %s, messages: %d, cost: %.6f, tokens: %d}",
		c.Session, len(c.Messages), c.Cost, c.TokensUsed)
}
