package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/providers"
	"github.com/go-go-golems/parley/pkg/streaming"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client is a thin HTTP client for the generativelanguage API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

func NewClient(apiKey string, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

func (c *Client) newRequest(ctx context.Context, model string, verb string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	url := c.baseURL + "/models/" + model + ":" + verb + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return &providers.HTTPError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}

// GenerateContent performs one blocking generation round trip.
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	httpReq, err := c.newRequest(ctx, model, "generateContent", req)
	if err != nil {
		return nil, err
	}

	var ret GenerateContentResponse
	if err := c.do(httpReq, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// StreamGenerateContent opens an SSE connection and returns the normalized
// delta stream.
func (c *Client) StreamGenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*streaming.Stream, error) {
	httpReq, err := c.newRequest(ctx, model, "streamGenerateContent", req)
	if err != nil {
		return nil, err
	}
	q := httpReq.URL.Query()
	q.Set("alt", "sse")
	httpReq.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "streaming request failed")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &providers.HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	log.Debug().Str("model", model).Msg("gemini SSE stream opened")
	return streaming.NewSSEStream(resp.Body, extractDelta), nil
}

// extractDelta digs the incremental text out of a streamed frame. Frames
// without the path (metadata-only frames) yield no delta.
func extractDelta(frame map[string]interface{}) (string, bool) {
	candidate, ok := streaming.DigList(frame, "candidates", 0)
	if !ok {
		return "", false
	}
	content, ok := candidate["content"].(map[string]interface{})
	if !ok {
		return "", false
	}
	part, ok := streaming.DigList(content, "parts", 0)
	if !ok {
		return "", false
	}
	text, ok := part["text"].(string)
	return text, ok
}

// EmbedContent computes an embedding vector.
func (c *Client) EmbedContent(ctx context.Context, model string, req *EmbedContentRequest) (*EmbedContentResponse, error) {
	httpReq, err := c.newRequest(ctx, model, "embedContent", req)
	if err != nil {
		return nil, err
	}

	var ret EmbedContentResponse
	if err := c.do(httpReq, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}
