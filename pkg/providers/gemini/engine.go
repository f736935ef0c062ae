package gemini

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/media"
	"github.com/go-go-golems/parley/pkg/pricing"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/go-go-golems/parley/pkg/streaming"
)

const (
	ProviderName          = "gemini"
	DefaultModel          = "gemini-1.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

// Engine is the Gemini provider adapter. It speaks the generativelanguage
// REST API directly, including SSE streaming and embeddings.
type Engine struct {
	settings *settings.StepSettings
}

func NewEngine(stepSettings *settings.StepSettings) *Engine {
	if stepSettings == nil {
		stepSettings = settings.NewStepSettings()
	}
	return &Engine{settings: stepSettings}
}

func (e *Engine) Name() string {
	return ProviderName
}

func (e *Engine) model(c conversation.Conversation) string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

// BuildRequest maps the uniform message model into the vendor request shape:
// assistant becomes "model", the first system message is hoisted into
// systemInstruction, generation parameters and the response schema come from
// the options.
func (e *Engine) BuildRequest(c conversation.Conversation) (interface{}, error) {
	req := &GenerateContentRequest{}
	vision := supportsVision(e.model(c))

	systemHoisted := false
	for _, m := range c.Messages {
		if m.Role == conversation.RoleSystem && !systemHoisted {
			req.SystemInstruction = &Content{
				Parts: []Part{{Text: m.ContentString()}},
			}
			systemHoisted = true
			continue
		}

		content := Content{Role: mapRole(m.Role)}
		if !m.HasParts() {
			content.Parts = []Part{{Text: m.Text}}
		} else {
			for _, p := range m.Parts {
				content.Parts = append(content.Parts, convertPart(p, vision))
			}
		}
		req.Contents = append(req.Contents, content)
	}

	cfg := &GenerationConfig{
		Temperature:     c.Options.Temperature,
		MaxOutputTokens: c.Options.MaxTokens,
	}
	if c.Options.ResponseSchema != nil {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseSchema = c.Options.ResponseSchema
	}
	if cfg.Temperature != nil || cfg.MaxOutputTokens != nil || cfg.ResponseSchema != nil {
		req.GenerationConfig = cfg
	}
	req.SafetySettings = c.Options.SafetySettings

	return req, nil
}

func mapRole(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return "model"
	}
	return "user"
}

// convertPart turns one content part into the vendor shape. Images degrade to
// a textual placeholder when the model has no vision support. The mime type
// comes from the part, else from a data: URL prefix, else the fixed fallback.
func convertPart(p *conversation.ContentPart, vision bool) Part {
	switch p.Kind {
	case conversation.PartKindText:
		return Part{Text: p.Content}

	case conversation.PartKindImage:
		if !vision {
			return Part{Text: providers.VisionPlaceholder(p)}
		}
		fallthrough

	case conversation.PartKindAudio, conversation.PartKindFile:
		mimeType := p.MimeType
		data := p.Content
		if strings.HasPrefix(data, "data:") {
			if mimeType == "" {
				mimeType = media.SniffDataURL(data)
			}
			if idx := strings.Index(data, ","); idx >= 0 {
				data = data[idx+1:]
			}
		}
		if mimeType == "" {
			mimeType = media.DefaultMimeType
		}
		if strings.HasPrefix(p.Content, "http://") || strings.HasPrefix(p.Content, "https://") {
			return Part{FileData: &FileData{MimeType: mimeType, FileURI: p.Content}}
		}
		return Part{InlineData: &Blob{MimeType: mimeType, Data: data}}

	default:
		return Part{Text: p.String()}
	}
}

// supportsVision reports whether the selected model accepts image parts. All
// gemini generation models are multimodal; embedding and answer models are
// not.
func supportsVision(model string) bool {
	return strings.HasPrefix(model, "gemini-")
}

func (e *Engine) client() (*Client, error) {
	apiKey, ok := e.settings.APIKey(ProviderName)
	if !ok {
		return nil, errors.Wrap(providers.ErrMissingAPIKey, "gemini")
	}
	baseURL := e.settings.BaseURL(ProviderName, DefaultBaseURL)
	return NewClient(apiKey, baseURL, e.settings.HTTPClient()), nil
}

func (e *Engine) Call(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	client, err := e.client()
	if err != nil {
		return c, err
	}

	req_, err := e.BuildRequest(c)
	if err != nil {
		return c, err
	}
	req := req_.(*GenerateContentRequest)

	model := e.model(c)
	log.Debug().Str("model", model).Int("contents", len(req.Contents)).Msg("gemini generate request")

	resp, err := client.GenerateContent(ctx, model, req)
	if err != nil {
		return c, err
	}

	c.LastText = resp.Text()
	c.LastEmbedding = nil

	inputTokens, outputTokens := 0, 0
	if resp.UsageMetadata != nil {
		inputTokens = resp.UsageMetadata.PromptTokenCount
		outputTokens = resp.UsageMetadata.CandidatesTokenCount
	}
	cost := pricing.Lookup(model).TurnCost(inputTokens, outputTokens)
	c = c.AddUsage(cost, inputTokens+outputTokens)

	return c, nil
}

func (e *Engine) Stream(ctx context.Context, c conversation.Conversation) (*streaming.Stream, error) {
	client, err := e.client()
	if err != nil {
		return nil, err
	}

	req_, err := e.BuildRequest(c)
	if err != nil {
		return nil, err
	}

	return client.StreamGenerateContent(ctx, e.model(c), req_.(*GenerateContentRequest))
}

func (e *Engine) Embeddings(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	client, err := e.client()
	if err != nil {
		return c, err
	}

	model := c.Model
	if model == "" || strings.HasPrefix(model, "gemini-") {
		model = DefaultEmbeddingModel
	}

	req := &EmbedContentRequest{
		Model:   "models/" + model,
		Content: Content{Parts: []Part{{Text: c.EmbeddingInput()}}},
	}
	if c.Options.TaskType != nil {
		req.TaskType = *c.Options.TaskType
	}
	if dim := c.Options.OutputDimensionality; dim != nil {
		if !providers.ValidDimension(*dim) {
			return c, &providers.UnsupportedDimensionError{Dimension: *dim}
		}
		req.OutputDimensionality = dim
	}

	resp, err := client.EmbedContent(ctx, model, req)
	if err != nil {
		return c, err
	}

	c.LastEmbedding = resp.Embedding.Values
	c.LastText = ""

	// The embed endpoint reports no usage; estimate the prompt side locally.
	if tokens, err := pricing.EstimateTokens(model, c.EmbeddingInput()); err == nil {
		c = c.AddUsage(pricing.Lookup(model).TurnCost(tokens, 0), tokens)
	}

	return c, nil
}

var (
	_ providers.Provider           = (*Engine)(nil)
	_ providers.StreamingProvider  = (*Engine)(nil)
	_ providers.EmbeddingsProvider = (*Engine)(nil)
)
