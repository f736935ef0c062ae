package ollama

import (
	"encoding/base64"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/go-go-golems/parley/pkg/settings"
)

func TestBuildRequestPlainMessages(t *testing.T) {
	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().
		System("be terse").
		User("hi")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*api.ChatRequest)

	assert.Equal(t, DefaultModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "user", req.Messages[1].Role)
	require.NotNil(t, req.Stream)
	assert.False(t, *req.Stream)
}

func TestBuildRequestOptions(t *testing.T) {
	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().
		Opts(conversation.Options{
			Temperature: conversation.Float(0.1),
			MaxTokens:   conversation.Int(32),
		}).
		User("hi")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*api.ChatRequest)

	assert.Equal(t, 0.1, req.Options["temperature"])
	assert.Equal(t, 32, req.Options["num_predict"])
}

func TestBuildRequestJSONMode(t *testing.T) {
	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().
		Opts(conversation.Options{ResponseSchema: map[string]interface{}{"type": "object"}}).
		User("structured please")

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*api.ChatRequest)

	assert.Equal(t, "json", req.Format)
}

func TestBuildRequestVisionImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().
		WithModel("llava").
		User("what is this?").
		Image("data:image/png;base64," + payload)

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*api.ChatRequest)

	require.Len(t, req.Messages, 1)
	require.Len(t, req.Messages[0].Images, 1)
	assert.Equal(t, []byte("fake png bytes"), []byte(req.Messages[0].Images[0]))
	assert.Equal(t, "what is this?", req.Messages[0].Content)
}

func TestBuildRequestImagePlaceholderWithoutVision(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake png bytes"))
	e := NewEngine(settings.NewStepSettings())
	c := conversation.New().
		User("what is this?").
		Image("data:image/png;base64," + payload)

	req_, err := e.BuildRequest(c)
	require.NoError(t, err)
	req := req_.(*api.ChatRequest)

	require.Len(t, req.Messages, 1)
	assert.Empty(t, req.Messages[0].Images)
	assert.Contains(t, req.Messages[0].Content, "omitted")
}

func TestClientUsesConfiguredBaseURL(t *testing.T) {
	s := settings.NewStepSettings()
	s.BaseURLs["ollama-base-url"] = "http://localhost:11434"

	e := NewEngine(s)
	client, err := e.client()
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestClientRejectsInvalidBaseURL(t *testing.T) {
	s := settings.NewStepSettings()
	s.BaseURLs["ollama-base-url"] = "://not-a-url"

	e := NewEngine(s)
	_, err := e.client()
	assert.Error(t, err)
}
