package kubedrill

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// OpenAICompleter produces schema-constrained completions via the OpenAI
// chat completions API using structured outputs. Implements
// CompletionProvider.
type OpenAICompleter struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// OpenAIOption configures an OpenAICompleter.
type OpenAIOption func(*OpenAICompleter)

// WithOpenAIModel sets the chat model (default: gpt-4o-mini).
func WithOpenAIModel(model string) OpenAIOption {
	return func(c *OpenAICompleter) { c.model = model }
}

// WithOpenAIBaseURL sets the API base URL (default: https://api.openai.com).
// Useful for Azure OpenAI, proxies, or compatible APIs.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *OpenAICompleter) { c.baseURL = url }
}

// WithOpenAITimeout sets the per-request timeout (default: 60s).
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(c *OpenAICompleter) { c.client.Timeout = d }
}

// NewOpenAICompleter creates a completion provider for OpenAI chat models.
func NewOpenAICompleter(apiKey string, opts ...OpenAIOption) *OpenAICompleter {
	c := &OpenAICompleter{
		apiKey:  apiKey,
		model:   "gpt-4o-mini",
		baseURL: "https://api.openai.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a prompt with a required response schema and returns the
// raw JSON payload the model produced.
func (c *OpenAICompleter) Complete(ctx context.Context, creq CompletionRequest) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, &CapabilityError{Provider: "openai", Reason: "no API key"}
	}

	url := c.baseURL + "/v1/chat/completions"

	var messages []map[string]any
	if creq.Instructions != "" {
		messages = append(messages, map[string]any{"role": "system", "content": creq.Instructions})
	}
	messages = append(messages, map[string]any{"role": "user", "content": creq.Prompt})

	reqBody := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.7,
	}
	if creq.Schema != nil {
		reqBody["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "response",
				"schema": creq.Schema,
			},
		}
	} else {
		reqBody["response_format"] = map[string]any{"type": "json_object"}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &CapabilityError{Provider: "openai", Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &CapabilityError{Provider: "openai", Reason: "new request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CapabilityError{Provider: "openai", Reason: "http", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CapabilityError{
			Provider: "openai",
			Status:   resp.StatusCode,
			Reason:   string(body[:min(len(body), 300)]),
		}
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, &CapabilityError{Provider: "openai", Reason: "decode", Err: err}
	}

	if len(oaiResp.Choices) == 0 || oaiResp.Choices[0].Message.Content == "" {
		return nil, &CapabilityError{Provider: "openai", Reason: "empty response"}
	}

	text := stripCodeFences(oaiResp.Choices[0].Message.Content)
	if text == "" {
		return nil, &CapabilityError{Provider: "openai", Reason: "empty response"}
	}
	return json.RawMessage(text), nil
}
