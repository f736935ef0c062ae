package conversation

import (
	"fmt"

	"github.com/google/uuid"
)

// PartKind is the closed set of content part types. Adapters switch over it
// exhaustively when converting to vendor formats.
type PartKind string

const (
	PartKindText  PartKind = "text"
	PartKindImage PartKind = "image"
	PartKindAudio PartKind = "audio"
	PartKindFile  PartKind = "file"
)

// ContentPart is one typed unit of message payload. Content holds raw text,
// base64 data, a data: URL, or a remote URL depending on Kind. IDs are used
// only for removal, never for ordering.
type ContentPart struct {
	ID       uuid.UUID `json:"id"`
	Kind     PartKind  `json:"kind"`
	Content  string    `json:"content"`
	MimeType string    `json:"mimeType,omitempty"`
	Filename string    `json:"filename,omitempty"`
}

func NewTextPart(text string) *ContentPart {
	return &ContentPart{
		ID:      uuid.New(),
		Kind:    PartKindText,
		Content: text,
	}
}

func NewImagePart(content string, mimeType string) *ContentPart {
	return &ContentPart{
		ID:       uuid.New(),
		Kind:     PartKindImage,
		Content:  content,
		MimeType: mimeType,
	}
}

func NewAudioPart(content string, mimeType string) *ContentPart {
	return &ContentPart{
		ID:       uuid.New(),
		Kind:     PartKindAudio,
		Content:  content,
		MimeType: mimeType,
	}
}

func NewFilePart(content string, mimeType string, filename string) *ContentPart {
	return &ContentPart{
		ID:       uuid.New(),
		Kind:     PartKindFile,
		Content:  content,
		MimeType: mimeType,
		Filename: filename,
	}
}

func (p *ContentPart) String() string {
	if p.Kind == PartKindText {
		return p.Content
	}
	return fmt.Sprintf("ContentPart{Kind: %s, MimeType: %s, Filename: %s}", p.Kind, p.MimeType, p.Filename)
}
