package kubedrill

import (
	"context"
	"encoding/json"
	"fmt"
)

// The assist operations are read-only pass-throughs over the completion
// provider: fixed role prompt in, fixed tagged response type out, no
// persistence side effects.

const explainInstructions = `You are an expert Kubernetes instructor. Explain the requested concept clearly
for a learner preparing for hands-on cluster work. Include concrete examples and related concepts.`

const troubleshootInstructions = `You are an expert Kubernetes operator. Diagnose the described issue, lay out
ordered diagnostic steps, and suggest commands to run.`

// ExplainConcept asks the generative capability to explain a concept.
func (e *Engine) ExplainConcept(ctx context.Context, concept string) (*Explanation, error) {
	if e.provider == nil {
		return nil, &CapabilityError{Provider: "none", Reason: "no completion provider configured"}
	}

	raw, err := e.provider.Complete(ctx, CompletionRequest{
		Instructions: explainInstructions,
		Prompt:       "Explain this concept: " + concept,
		Schema:       explanationSchema(),
	})
	if err != nil {
		return nil, err
	}

	var out Explanation
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &CapabilityError{Provider: "explain", Reason: "malformed response", Err: fmt.Errorf("decode: %w", err)}
	}
	return &out, nil
}

// TroubleshootIssue asks the generative capability to diagnose an issue.
func (e *Engine) TroubleshootIssue(ctx context.Context, issue string) (*Troubleshooting, error) {
	if e.provider == nil {
		return nil, &CapabilityError{Provider: "none", Reason: "no completion provider configured"}
	}

	raw, err := e.provider.Complete(ctx, CompletionRequest{
		Instructions: troubleshootInstructions,
		Prompt:       "Troubleshoot this issue: " + issue,
		Schema:       troubleshootSchema(),
	})
	if err != nil {
		return nil, err
	}

	var out Troubleshooting
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &CapabilityError{Provider: "troubleshoot", Reason: "malformed response", Err: fmt.Errorf("decode: %w", err)}
	}
	return &out, nil
}
