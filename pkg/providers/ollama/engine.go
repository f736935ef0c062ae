package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/settings"
	"github.com/go-go-golems/parley/pkg/streaming"
)

const (
	ProviderName = "ollama"
	DefaultModel = "llama2"
)

// Engine is the Ollama provider adapter for locally hosted models. There is
// no API key; the endpoint comes from settings or the OLLAMA_HOST
// environment. Cost always accrues as zero, tokens from the reported eval
// counts.
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

func (e *Engine) client() (*api.Client, error) {
	if baseURL := e.settings.BaseURL(ProviderName, ""); baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid ollama base URL %s", baseURL)
		}
		httpClient := e.settings.HTTPClient()
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		return api.NewClient(u, httpClient), nil
	}
	return api.ClientFromEnvironment()
}

// BuildRequest flattens the conversation into ollama chat messages. Inline
// base64 images are decoded to raw bytes for vision models; anything the
// local API cannot carry degrades to text.
func (e *Engine) BuildRequest(c conversation.Conversation) (interface{}, error) {
	model := e.model(c)
	vision := supportsVision(model)

	var msgs []api.Message
	for _, m := range c.Messages {
		msg := api.Message{Role: string(m.Role)}
		if !m.HasParts() {
			msg.Content = m.Text
		} else {
			var texts []string
			for _, p := range m.Parts {
				switch p.Kind {
				case conversation.PartKindText:
					texts = append(texts, p.Content)
				case conversation.PartKindImage:
					if img, ok := decodeImage(p, vision); ok {
						msg.Images = append(msg.Images, img)
					} else {
						texts = append(texts, providers.VisionPlaceholder(p))
					}
				default:
					texts = append(texts, p.String())
				}
			}
			msg.Content = strings.Join(texts, "\n")
		}
		msgs = append(msgs, msg)
	}

	options := map[string]interface{}{}
	if c.Options.Temperature != nil {
		options["temperature"] = *c.Options.Temperature
	}
	if c.Options.MaxTokens != nil {
		options["num_predict"] = *c.Options.MaxTokens
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: msgs,
		Stream:   &stream,
		Options:  options,
	}
	if c.Options.ResponseSchema != nil {
		// The local API only knows json mode, not full schemas.
		req.Format = "json"
	}

	return req, nil
}

func decodeImage(p *conversation.ContentPart, vision bool) (api.ImageData, bool) {
	if !vision {
		return nil, false
	}
	content := p.Content
	if strings.HasPrefix(content, "data:") {
		if idx := strings.Index(content, ","); idx >= 0 {
			content = content[idx+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, false
	}
	return api.ImageData(raw), true
}

func supportsVision(model string) bool {
	return strings.Contains(model, "llava")
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
	req := req_.(*api.ChatRequest)

	log.Debug().Str("model", req.Model).Int("messages", len(req.Messages)).Msg("ollama chat request")

	text := ""
	tokens := 0
	err = client.Chat(ctx, req, func(resp api.ChatResponse) error {
		text += resp.Message.Content
		if resp.Done {
			tokens = resp.PromptEvalCount + resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return c, errors.Wrap(err, "ollama chat failed")
	}

	c.LastText = text
	c.LastEmbedding = nil
	c = c.AddUsage(0, tokens)

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
	req := req_.(*api.ChatRequest)
	stream := true
	req.Stream = &stream

	s, producer := streaming.NewPipe()
	go func() {
		err := client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !producer.Send(resp.Message.Content) {
					return context.Canceled
				}
			}
			return nil
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		producer.CloseSend(err)
	}()

	return s, nil
}

func (e *Engine) Embeddings(ctx context.Context, c conversation.Conversation) (conversation.Conversation, error) {
	client, err := e.client()
	if err != nil {
		return c, err
	}

	resp, err := client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model(c),
		Prompt: c.EmbeddingInput(),
	})
	if err != nil {
		return c, errors.Wrap(err, "ollama embeddings failed")
	}

	c.LastEmbedding = resp.Embedding
	c.LastText = ""

	return c, nil
}

var (
	_ providers.Provider           = (*Engine)(nil)
	_ providers.StreamingProvider  = (*Engine)(nil)
	_ providers.EmbeddingsProvider = (*Engine)(nil)
)
