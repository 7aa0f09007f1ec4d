package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIClient talks to an OpenAI-compatible server: POST /tokenize for
// counting and POST /v1/chat/completions for generation. llama.cpp's
// server speaks both.
type OpenAIClient struct {
	endpoint string
	client   *http.Client
}

// NewOpenAIClient creates a client for the given base endpoint URL.
// Per-call deadlines come from the caller's context, so the underlying
// http.Client carries no timeout of its own.
func NewOpenAIClient(endpoint string) *OpenAIClient {
	return &OpenAIClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{},
	}
}

// CountTokens counts tokens via the /tokenize endpoint.
func (c *OpenAIClient) CountTokens(ctx context.Context, text string) (int, error) {
	requestBody, err := json.Marshal(map[string]any{"content": text})
	if err != nil {
		return 0, err
	}

	payload, err := c.post(ctx, "/tokenize", requestBody)
	if err != nil {
		return 0, err
	}

	if tokens, ok := payload["tokens"].([]any); ok {
		return len(tokens), nil
	}
	if count, ok := payload["count"].(float64); ok {
		return int(count), nil
	}

	return 0, errors.New("tokenize response missing tokens and count fields")
}

// Generate produces a completion via the /v1/chat/completions endpoint.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	requestBody, err := json.Marshal(map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
		"temperature": opts.Temperature,
	})
	if err != nil {
		return "", err
	}

	payload, err := c.post(ctx, "/v1/chat/completions", requestBody)
	if err != nil {
		return "", err
	}

	choices, ok := payload["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", errors.New("completion response has no choices")
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", errors.New("completion response has malformed choice")
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", errors.New("completion response has malformed message")
	}
	content, _ := message["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("completion response is empty")
	}

	return content, nil
}

// post sends a JSON body and decodes a JSON object response.
func (c *OpenAIClient) post(ctx context.Context, path string, body []byte) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}

	return payload, nil
}
