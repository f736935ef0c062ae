package conversation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn entry. Content is either a plain Text string or an
// ordered list of Parts; when Parts is non-empty it is the authoritative
// content and Text is empty.
type Message struct {
	ID    uuid.UUID      `json:"id"`
	Role  Role           `json:"role"`
	Text  string         `json:"text,omitempty"`
	Parts []*ContentPart `json:"parts,omitempty"`
}

type MessageOption func(*Message)

func WithID(id uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func WithParts(parts ...*ContentPart) MessageOption {
	return func(m *Message) {
		m.Text = ""
		m.Parts = parts
	}
}

func NewMessage(role Role, text string, options ...MessageOption) *Message {
	ret := &Message{
		ID:   uuid.New(),
		Role: role,
		Text: text,
	}

	for _, option := range options {
		option(ret)
	}

	return ret
}

func (m *Message) HasParts() bool {
	return len(m.Parts) > 0
}

// ContentString flattens the message content to plain text. Non-text parts are
// skipped.
func (m *Message) ContentString() string {
	if !m.HasParts() {
		return m.Text
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == PartKindText {
			sb.WriteString(p.Content)
		}
	}
	return sb.String()
}

// Clone returns a deep-enough copy for single-writer value semantics: the
// parts slice is copied so appends never alias across snapshots.
func (m *Message) Clone() *Message {
	ret := *m
	if len(m.Parts) > 0 {
		ret.Parts = append([]*ContentPart(nil), m.Parts...)
	}
	return &ret
}

func (m *Message) View() string {
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.ContentString(), "\n"))
}
