package kubedrill

import (
	"context"
	"encoding/json"
)

// CompletionRequest is one schema-constrained call to the generative
// capability. Schema is a JSON schema (type/properties/items/required
// subset) the response must conform to; the engines decode the returned
// payload against it and fail rather than guess on mismatch.
type CompletionRequest struct {
	Instructions string         // Fixed role instruction for the call
	Prompt       string         // Gathered context plus the caller's input
	Schema       map[string]any // Required response shape
}

// CompletionProvider produces structured output from a generative model.
// Built-in: GeminiCompleter, OpenAICompleter, OllamaCompleter. Failures
// (timeout, non-2xx, empty output) surface as *CapabilityError.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (json.RawMessage, error)
}

// CommandRunner executes a single command and returns its captured output.
// The core engines never depend on it; only the run_command tool does.
type CommandRunner interface {
	Run(ctx context.Context, command string) (string, error)
}
