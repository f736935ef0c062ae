package media

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxFileSize is the largest local file we are willing to inline into a request.
const MaxFileSize = 20 * 1024 * 1024

// DefaultMimeType is used when no type could be determined for a media payload.
const DefaultMimeType = "application/octet-stream"

// Resolved is the outcome of classifying a media input.
type Resolved struct {
	// Content is the payload to send: base64 data, a data: URL, or a remote URL.
	Content  string
	MimeType string
	Filename string
}

// Resolve classifies a media input and normalizes it for transport.
// Already-encoded data (raw base64 or data: URLs) and remote http(s) URLs pass
// through unchanged; a local path is read and base64-encoded. Anything else is
// an error.
func Resolve(input string) (*Resolved, error) {
	switch {
	case strings.HasPrefix(input, "data:"):
		return &Resolved{
			Content:  input,
			MimeType: SniffDataURL(input),
		}, nil

	case strings.HasPrefix(input, "http://"), strings.HasPrefix(input, "https://"):
		return &Resolved{
			Content:  input,
			MimeType: mimeTypeFromExtension(filepath.Ext(input)),
			Filename: filepath.Base(input),
		}, nil
	}

	if _, err := os.Stat(input); err == nil {
		return resolveLocalFile(input)
	}

	// Not a path: accept raw base64 payloads as-is.
	if _, err := base64.StdEncoding.DecodeString(input); err == nil {
		return &Resolved{Content: input}, nil
	}

	return nil, errors.Errorf("media input is not a URL, base64 payload, or readable file: %q", truncateForError(input))
}

func resolveLocalFile(path string) (*Resolved, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.Size() > MaxFileSize {
		return nil, errors.Errorf("file %s exceeds %d byte limit", path, MaxFileSize)
	}

	mimeType := mimeTypeFromExtension(filepath.Ext(path))
	if mimeType == "" {
		return nil, errors.Errorf("unsupported media type for %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	log.Debug().Str("path", path).Str("mime_type", mimeType).Int("size", len(content)).Msg("resolved local media file")

	return &Resolved{
		Content:  base64.StdEncoding.EncodeToString(content),
		MimeType: mimeType,
		Filename: info.Name(),
	}, nil
}

// SniffDataURL extracts the mime type from a data: URL prefix. Returns the
// empty string when the input is not a data URL or carries no type.
func SniffDataURL(input string) string {
	if !strings.HasPrefix(input, "data:") {
		return ""
	}
	rest := strings.TrimPrefix(input, "data:")
	end := strings.IndexAny(rest, ";,")
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

func mimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md":
		return "text/plain"
	default:
		return ""
	}
}

func truncateForError(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
