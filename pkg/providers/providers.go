// Package providers holds the shared error taxonomy and helpers for the
// concrete adapters under providers/gemini, providers/openai, and
// providers/ollama. The capability interfaces themselves live in
// pkg/conversation, next to the value they operate on.
package providers

import (
	"github.com/go-go-golems/parley/pkg/conversation"
)

// Provider and friends are re-exported so adapter packages and callers can
// name the contract without importing the conversation package for it.
type (
	Provider           = conversation.Provider
	StreamingProvider  = conversation.StreamingProvider
	EmbeddingsProvider = conversation.EmbeddingsProvider
)

// SupportedDimensions is the closed set of embedding output dimensionalities
// accepted across adapters.
var SupportedDimensions = []int{128, 256, 512, 768, 1536, 3072}

// ValidDimension reports whether dim may be requested via
// Options.OutputDimensionality.
func ValidDimension(dim int) bool {
	for _, d := range SupportedDimensions {
		if d == dim {
			return true
		}
	}
	return false
}

// VisionPlaceholder is substituted for an image part when the selected model
// has no vision support, preserving pipeline continuity instead of erroring.
func VisionPlaceholder(p *conversation.ContentPart) string {
	if p.Filename != "" {
		return "[image attachment omitted: " + p.Filename + "]"
	}
	return "[image attachment omitted: model has no vision support]"
}

// CanStream probes the optional streaming capability.
func CanStream(p Provider) (StreamingProvider, bool) {
	sp, ok := p.(StreamingProvider)
	return sp, ok
}

// CanEmbed probes the optional embeddings capability.
func CanEmbed(p Provider) (EmbeddingsProvider, bool) {
	ep, ok := p.(EmbeddingsProvider)
	return ep, ok
}
