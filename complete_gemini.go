package kubedrill

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// GeminiCompleter produces schema-constrained completions via the Gemini API.
// Implements CompletionProvider.
type GeminiCompleter struct {
	apiKey  string
	model   string
	baseURL string // Gemini API base URL (overridable for tests)
	client  *http.Client
}

// GeminiOption configures a GeminiCompleter.
type GeminiOption func(*GeminiCompleter)

// WithGeminiModel sets the model (default: gemini-2.5-flash).
func WithGeminiModel(model string) GeminiOption {
	return func(c *GeminiCompleter) { c.model = model }
}

// WithGeminiBaseURL sets the API base URL (default: the public endpoint).
func WithGeminiBaseURL(url string) GeminiOption {
	return func(c *GeminiCompleter) { c.baseURL = url }
}

// WithGeminiTimeout sets the per-request timeout (default: 60s).
func WithGeminiTimeout(d time.Duration) GeminiOption {
	return func(c *GeminiCompleter) { c.client.Timeout = d }
}

// NewGeminiCompleter creates a completion provider using Gemini.
func NewGeminiCompleter(apiKey string, opts ...GeminiOption) *GeminiCompleter {
	c := &GeminiCompleter{
		apiKey:  apiKey,
		model:   "gemini-2.5-flash",
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends a prompt with a required response schema and returns the
// raw JSON payload the model produced.
func (c *GeminiCompleter) Complete(ctx context.Context, creq CompletionRequest) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, &CapabilityError{Provider: "gemini", Reason: "no API key"}
	}

	url := c.baseURL + "/models/" + c.model + ":generateContent?key=" + c.apiKey

	reqBody := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": creq.Prompt}}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens":  8192,
			"temperature":      0.7,
			"responseMimeType": "application/json",
		},
	}
	if creq.Instructions != "" {
		reqBody["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": creq.Instructions}},
		}
	}
	if creq.Schema != nil {
		reqBody["generationConfig"].(map[string]any)["responseSchema"] = creq.Schema
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &CapabilityError{Provider: "gemini", Reason: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &CapabilityError{Provider: "gemini", Reason: "new request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &CapabilityError{Provider: "gemini", Reason: "http", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &CapabilityError{
			Provider: "gemini",
			Status:   resp.StatusCode,
			Reason:   string(body[:min(len(body), 300)]),
		}
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, &CapabilityError{Provider: "gemini", Reason: "decode", Err: err}
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, &CapabilityError{Provider: "gemini", Reason: "empty response"}
	}

	text := stripCodeFences(geminiResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, &CapabilityError{Provider: "gemini", Reason: "empty response"}
	}
	return json.RawMessage(text), nil
}

// stripCodeFences unwraps a markdown-fenced payload. Schema-constrained
// responses should be bare JSON, but some models fence anyway.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	var jsonLines []string
	inBlock := false
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			jsonLines = append(jsonLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(jsonLines, "\n"))
}
