package kubedrill

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// OllamaCompleter produces schema-constrained completions via a local Ollama
// server. Implements CompletionProvider. No API key required.
type OllamaCompleter struct {
	host   string
	model  string
	client *http.Client
}

// OllamaOption configures an OllamaCompleter.
type OllamaOption func(*OllamaCompleter)

// WithOllamaHost sets the Ollama server URL (default: http://localhost:11434).
func WithOllamaHost(host string) OllamaOption {
	return func(c *OllamaCompleter) { c.host = host }
}

// WithOllamaTimeout sets the per-request timeout (default: 120s; local
// models are slow).
func WithOllamaTimeout(d time.Duration) OllamaOption {
	return func(c *OllamaCompleter) { c.client.Timeout = d }
}

// NewOllamaCompleter creates a completion provider for a local Ollama
// instance. The model must be already pulled (e.g., "llama3.1", "qwen2.5").
func NewOllamaCompleter(model string, opts ...OllamaOption) *OllamaCompleter {
	c := &OllamaCompleter{
		host:   "http://localhost:11434",
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a prompt with a required response schema and returns the
// raw JSON payload the model produced. The schema rides in Ollama's "format"
// field, which constrains decoding server-side.
func (c *OllamaCompleter) Complete(ctx context.Context, creq CompletionRequest) (json.RawMessage, error) {
	url := c.host + "/api/chat"

	var messages []map[string]any
	if creq.Instructions != "" {
		messages = append(messages, map[string]any{"role": "system", "content": creq.Instructions})
	}
	messages = append(messages, map[string]any{"role": "user", "content": creq.Prompt})

	reqBody := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"options":  map[string]any{"temperature": 0.7},
	}
	if creq.Schema != nil {
		reqBody["format"] = creq.Schema
	} else {
		reqBody["format"] = "json"
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &CapabilityError{Provider: "ollama", Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &CapabilityError{Provider: "ollama", Reason: "new request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CapabilityError{Provider: "ollama", Reason: "http", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CapabilityError{
			Provider: "ollama",
			Status:   resp.StatusCode,
			Reason:   string(body[:min(len(body), 300)]),
		}
	}

	var ollamaResp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, &CapabilityError{Provider: "ollama", Reason: "decode", Err: err}
	}

	text := stripCodeFences(ollamaResp.Message.Content)
	if text == "" {
		return nil, &CapabilityError{Provider: "ollama", Reason: "empty response"}
	}
	return json.RawMessage(text), nil
}
