package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/settings"
)

func testSettings(baseURL string) *settings.StepSettings {
	s := settings.NewStepSettings()
	s.APIKeys["gemini-api-key"] = "test-key"
	s.BaseURLs["gemini-base-url"] = baseURL
	return s
}

func TestBuildRequestHoistsSystemInstruction(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		System("be terse").
		User("hi").
		Assistant("hello").
		User("again")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*GenerateContentRequest)

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "be terse", req.SystemInstruction.Parts[0].Text)

	require.Len(t, req.Contents, 3)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
	assert.Equal(t, "user", req.Contents[2].Role)
}

func TestBuildRequestGenerationConfig(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		Opts(conversation.Options{
			Temperature:    conversation.Float(0.3),
			MaxTokens:      conversation.Int(256),
			ResponseSchema: map[string]interface{}{"type": "object"},
		}).
		User("structured please")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*GenerateContentRequest)

	require.NotNil(t, req.GenerationConfig)
	assert.Equal(t, 0.3, *req.GenerationConfig.Temperature)
	assert.Equal(t, 256, *req.GenerationConfig.MaxOutputTokens)
	assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)
	assert.NotNil(t, req.GenerationConfig.ResponseSchema)
}

func TestBuildRequestInlineImage(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		User("what is this?").
		Image("data:image/png;base64,AAAA")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*GenerateContentRequest)

	require.Len(t, req.Contents, 1)
	parts := req.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "what is this?", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MimeType)
	// the data: prefix is stripped for the wire
	assert.Equal(t, "AAAA", parts[1].InlineData.Data)
}

func TestBuildRequestRemoteImageUsesFileData(t *testing.T) {
	e := NewEngine(testSettings(""))
	c := conversation.New().
		User("look").
		Image("https://example.com/cat.png")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*GenerateContentRequest)

	parts := req.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[1].FileData)
	assert.Equal(t, "https://example.com/cat.png", parts[1].FileData.FileURI)
}

func TestCall(t *testing.T) {
	var gotPath string
	var gotReq GenerateContentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		resp := GenerateContentResponse{
			Candidates: []Candidate{{
				Content: Content{Parts: []Part{{Text: "pong"}}},
			}},
			UsageMetadata: &UsageMetadata{PromptTokenCount: 5, CandidatesTokenCount: 7},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().WithProvider(e).User("ping")

	updated, err := e.Call(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "/models/gemini-1.5-flash:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	assert.Equal(t, "ping", gotReq.Contents[0].Parts[0].Text)
	assert.Equal(t, "pong", updated.LastText)
	assert.Equal(t, 12, updated.TokensUsed)
	assert.Greater(t, updated.Cost, 0.0)
}

func TestCallHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "quota"}}`))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().User("ping")

	_, err := e.Call(context.Background(), c)
	require.Error(t, err)

	var httpErr *providers.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Status)
}

func TestCallMissingAPIKey(t *testing.T) {
	s := settings.NewStepSettings()
	t.Setenv("GEMINI_API_KEY", "")

	e := NewEngine(s)
	c := conversation.New().User("ping")

	_, err := e.Call(context.Background(), c)
	assert.ErrorIs(t, err, providers.ErrMissingAPIKey)
}

func TestStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"candidates": [{"content": {"parts": [{"text": "hel"}]}}]}`,
			`{"candidates": [{"content": {"parts": [{"text": "lo"}]}}]}`,
		}
		for _, f := range frames {
			_, _ = w.Write([]byte("data: " + f + "\n\n"))
		}
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().User("hi")

	s, err := e.Stream(context.Background(), c)
	require.NoError(t, err)

	text, err := s.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestEmbeddings(t *testing.T) {
	var gotReq EmbedContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":embedContent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		var resp EmbedContentResponse
		resp.Embedding.Values = []float64{0.1, 0.2}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	e := NewEngine(testSettings(server.URL))
	c := conversation.New().
		Opts(conversation.Options{
			TaskType:             conversation.String("RETRIEVAL_DOCUMENT"),
			OutputDimensionality: conversation.Int(256),
		}).
		User("embed me")

	updated, err := e.Embeddings(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "models/text-embedding-004", gotReq.Model)
	assert.Equal(t, "RETRIEVAL_DOCUMENT", gotReq.TaskType)
	require.NotNil(t, gotReq.OutputDimensionality)
	assert.Equal(t, 256, *gotReq.OutputDimensionality)
	assert.Equal(t, []float64{0.1, 0.2}, updated.LastEmbedding)
}

func TestEmbeddingsRejectsUnsupportedDimension(t *testing.T) {
	e := NewEngine(testSettings("http://127.0.0.1:1"))
	c := conversation.New().
		Opts(conversation.Options{OutputDimensionality: conversation.Int(333)}).
		User("embed me")

	_, err := e.Embeddings(context.Background(), c)
	require.Error(t, err)

	var dimErr *providers.UnsupportedDimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 333, dimErr.Dimension)
}
