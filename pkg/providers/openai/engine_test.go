package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/settings"
)

func testSettings(baseURL string) *settings.StepSettings {
	s := settings.NewStepSettings()
	s.APIKeys["openai-api-key"] = "test-key"
	if baseURL != "" {
		s.BaseURLs["openai-base-url"] = baseURL + "/v1"
	}
	return s
}

func TestBuildRequestPlainMessages(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		System("be terse").
		User("hi").
		WithModel("gpt-4o")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*go_openai.ChatCompletionRequest)

	assert.Equal(t, "gpt-4o", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be terse", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
}

func TestBuildRequestOptions(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		Opts(conversation.Options{
			Temperature: conversation.Float(0.25),
			MaxTokens:   conversation.Int(64),
		}).
		User("hi")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*go_openai.ChatCompletionRequest)

	assert.InDelta(t, 0.25, float64(req.Temperature), 1e-6)
	assert.Equal(t, 64, req.MaxTokens)
}

func TestBuildRequestResponseSchema(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		Opts(conversation.Options{
			ResponseSchema: map[string]interface{}{"type": "object"},
		}).
		User("structured please")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*go_openai.ChatCompletionRequest)

	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, go_openai.ChatCompletionResponseFormatTypeJSONSchema, req.ResponseFormat.Type)
	require.NotNil(t, req.ResponseFormat.JSONSchema)
	assert.True(t, req.ResponseFormat.JSONSchema.Strict)
}

func TestBuildRequestVisionImage(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		WithModel("gpt-4o").
		User("what is this?").
		Image("data:image/png;base64,AAAA")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*go_openai.ChatCompletionRequest)

	require.Len(t, req.Messages, 1)
	parts := req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, go_openai.ChatMessagePartTypeText, parts[0].Type)
	assert.Equal(t, go_openai.ChatMessagePartTypeImageURL, parts[1].Type)
	assert.Equal(t, "data:image/png;base64,AAAA", parts[1].ImageURL.URL)
}

func TestBuildRequestImagePlaceholderWithoutVision(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		WithModel("gpt-3.5-turbo").
		User("what is this?").
		Image("data:image/png;base64,AAAA")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*go_openai.ChatCompletionRequest)

	parts := req.Messages[0].MultiContent
	require.Len(t, parts, 2)
	assert.Equal(t, go_openai.ChatMessagePartTypeText, parts[1].Type)
	assert.Contains(t, parts[1].Text, "omitted")
}

func TestImageURLWrapsRawBase64(t *testing.T) {
	p := conversation.NewImagePart("AAAA", "image/jpeg")
	assert.Equal(t, "data:image/jpeg;base64,AAAA", imageURL(p))

	p = conversation.NewImagePart("AAAA", "")
	assert.Equal(t, "data:image/png;base64,AAAA", imageURL(p))

	p = conversation.NewImagePart("https://example.com/a.png", "image/png")
	assert.Equal(t, "https://example.com/a.png", imageURL(p))
}

func TestCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := go_openai.ChatCompletionResponse{
			Choices: []go_openai.ChatCompletionChoice{{
				Message: go_openai.ChatCompletionMessage{Role: "assistant", Content: "pong"},
			}},
			Usage: go_openai.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().WithModel("gpt-4o").User("ping")

	updated, err := e.Call(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "pong", updated.LastText)
	assert.Equal(t, 7, updated.TokensUsed)
	assert.Greater(t, updated.Cost, 0.0)
}

func TestCallAPIErrorBecomesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().User("ping")

	_, err := e.Call(context.Background(), c)
	require.Error(t, err)

	var httpErr *providers.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
}

func TestCallMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().User("ping")

	_, err := e.Call(context.Background(), c)
	assert.ErrorIs(t, err, providers.ErrMissingAPIKey)
}

func TestEmbeddings(t *testing.T) {
	var gotReq go_openai.EmbeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := go_openai.EmbeddingResponse{
			Data: []go_openai.Embedding{{
				Embedding: []float32{0.5, 0.25},
			}},
			Usage: go_openai.Usage{PromptTokens: 2, TotalTokens: 2},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().
		Opts(conversation.Options{OutputDimensionality: conversation.Int(1536)}).
		User("embed me")

	updated, err := e.Embeddings(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, go_openai.EmbeddingModel(DefaultEmbeddingModel), gotReq.Model)
	assert.Equal(t, 1536, gotReq.Dimensions)
	assert.Equal(t, []float64{0.5, 0.25}, updated.LastEmbedding)
	assert.Equal(t, 2, updated.TokensUsed)
}
