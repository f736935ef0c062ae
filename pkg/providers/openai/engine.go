package openai

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/pricing"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/go-go-golems/parley/pkg/streaming"
)

const (
	ProviderName          = "openai"
	DefaultModel          = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Engine is the OpenAI provider adapter, built on sashabaranov/go-openai.
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

func (e *Engine) client() (*go_openai.Client, error) {
	apiKey, ok := e.settings.APIKey(ProviderName)
	if !ok {
		return nil, errors.Wrap(providers.ErrMissingAPIKey, "openai")
	}

	cfg := go_openai.DefaultConfig(apiKey)
	if baseURL := e.settings.BaseURL(ProviderName, ""); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = e.settings.HTTPClient()

	return go_openai.NewClientWithConfig(cfg), nil
}

// BuildRequest maps the uniform message model into a chat completion request.
// The first system message stays a system-role entry (the vendor's dedicated
// slot); generation parameters and the response schema come from the options.
func (e *Engine) BuildRequest(c conversation.Conversation) (interface{}, error) {
	model := e.model(c)
	vision := supportsVision(model)

	var msgs []go_openai.ChatCompletionMessage
	for _, m := range c.Messages {
		msg := go_openai.ChatCompletionMessage{Role: string(m.Role)}
		if !m.HasParts() {
			msg.Content = m.Text
		} else {
			for _, p := range m.Parts {
				msg.MultiContent = append(msg.MultiContent, convertPart(p, vision))
			}
		}
		msgs = append(msgs, msg)
	}

	req := &go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}
	if c.Options.Temperature != nil {
		req.Temperature = float32(*c.Options.Temperature)
	}
	if c.Options.MaxTokens != nil {
		req.MaxTokens = *c.Options.MaxTokens
	}
	if c.Options.ResponseSchema != nil {
		schemaBytes, err := json.Marshal(c.Options.ResponseSchema)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal response schema")
		}
		req.ResponseFormat = &go_openai.ChatCompletionResponseFormat{
			Type: go_openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &go_openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "response",
				Schema: json.RawMessage(schemaBytes),
				Strict: true,
			},
		}
	}

	return req, nil
}

// convertPart maps one content part into the vendor part shape. Audio and
// file parts have no slot in the chat completions API and degrade to text;
// images degrade to a placeholder on non-vision models.
func convertPart(p *conversation.ContentPart, vision bool) go_openai.ChatMessagePart {
	switch p.Kind {
	case conversation.PartKindText:
		return go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeText,
			Text: p.Content,
		}

	case conversation.PartKindImage:
		if !vision {
			return go_openai.ChatMessagePart{
				Type: go_openai.ChatMessagePartTypeText,
				Text: providers.VisionPlaceholder(p),
			}
		}
		return go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeImageURL,
			ImageURL: &go_openai.ChatMessageImageURL{
				URL:    imageURL(p),
				Detail: go_openai.ImageURLDetailAuto,
			},
		}

	default:
		return go_openai.ChatMessagePart{
			Type: go_openai.ChatMessagePartTypeText,
			Text: p.String(),
		}
	}
}

// imageURL produces the url-or-data-URL form the API expects. Raw base64
// content is wrapped into a data: URL with the part's mime type, defaulting
// when undetectable.
func imageURL(p *conversation.ContentPart) string {
	c := p.Content
	if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") || strings.HasPrefix(c, "data:") {
		return c
	}
	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + c
}

func supportsVision(model string) bool {
	return strings.Contains(model, "gpt-4o") ||
		strings.Contains(model, "gpt-4-turbo") ||
		strings.Contains(model, "vision")
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
	req := req_.(*go_openai.ChatCompletionRequest)

	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("openai chat completion request")

	resp, err := client.CreateChatCompletion(ctx, *req)
	if err != nil {
		return c, wrapAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return c, errors.New("openai returned no choices")
	}

	c.LastText = resp.Choices[0].Message.Content
	c.LastEmbedding = nil

	cost := pricing.Lookup(req.Model).TurnCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	c = c.AddUsage(cost, resp.Usage.TotalTokens)

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
	req := *req_.(*go_openai.ChatCompletionRequest)
	req.Stream = true

	vendorStream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, wrapAPIError(err)
	}

	s, producer := streaming.NewPipe()
	go func() {
		defer func() {
			_ = vendorStream.Close()
		}()
		for {
			select {
			case <-producer.Done():
				return
			default:
			}

			resp, err := vendorStream.Recv()
			if err != nil {
				// Recv returns io.EOF after the vendor's [DONE] frame; a nil
				// CloseSend turns it into our own end-of-stream marker.
				if errors.Is(err, io.EOF) {
					producer.CloseSend(nil)
					return
				}
				producer.CloseSend(wrapAPIError(err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				if !producer.Send(delta) {
					return
				}
			}
		}
	}()

	return s, nil
}

func (e *Engine) Embeddings(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	client, err := e.client()
	if err != nil {
		return c, err
	}

	model := c.Model
	if model == "" || !strings.HasPrefix(model, "text-embedding") {
		model = DefaultEmbeddingModel
	}

	req := go_openai.EmbeddingRequest{
		Input: []string{c.EmbeddingInput()},
		Model: go_openai.EmbeddingModel(model),
	}
	if dim := c.Options.OutputDimensionality; dim != nil {
		if !providers.ValidDimension(*dim) {
			return c, &providers.UnsupportedDimensionError{Dimension: *dim}
		}
		req.Dimensions = *dim
	}

	resp, err := client.CreateEmbeddings(ctx, req)
	if err != nil {
		return c, wrapAPIError(err)
	}
	if len(resp.Data) == 0 {
		return c, errors.New("openai returned no embedding data")
	}

	embedding := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float64(v)
	}
	c.LastEmbedding = embedding
	c.LastText = ""

	cost := pricing.Lookup(model).TurnCost(resp.Usage.PromptTokens, 0)
	c = c.AddUsage(cost, resp.Usage.TotalTokens)

	return c, nil
}

// wrapAPIError converts go-openai's error types into the shared taxonomy so
// the orchestrator can treat every adapter uniformly.
func wrapAPIError(err error) error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		body, _ := json.Marshal(apiErr)
		return &providers.HTTPError{Status: apiErr.HTTPStatusCode, Body: string(body)}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &providers.HTTPError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}

var (
	_ providers.Provider           = (*Engine)(nil)
	_ providers.StreamingProvider  = (*Engine)(nil)
	_ providers.EmbeddingsProvider = (*Engine)(nil)
)
