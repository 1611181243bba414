package kubedrill

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const generateInstructions = `You are an expert Kubernetes instructor creating hands-on practice scenarios.
Design scenarios that address the learner's weaknesses and build on recent learning opportunities.
Each scenario needs setup commands to prepare a cluster, a sequence of concrete tasks,
progressive hints, a worked solution with commands, and verification commands.`

// GenerateScenarios asks the generative capability for a batch of practice
// scenarios grounded in the learner's notes and recent scenarios, validates
// every candidate, and persists the batch. Nothing is stored unless the whole
// batch validates; any provider or schema failure surfaces as
// *GenerationError with zero rows written.
func (e *Engine) GenerateScenarios(ctx context.Context, prompt string) ([]Scenario, error) {
	if e.provider == nil {
		return nil, &GenerationError{Err: &CapabilityError{Provider: "none", Reason: "no completion provider configured"}}
	}

	promptText, err := e.buildGenerationPrompt(prompt)
	if err != nil {
		return nil, err // storage failure while gathering context
	}

	raw, err := e.provider.Complete(ctx, CompletionRequest{
		Instructions: generateInstructions,
		Prompt:       promptText,
		Schema:       scenarioListSchema(),
	})
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	var batch scenarioBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("malformed batch: %w", err)}
	}
	if len(batch.Scenarios) == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("provider returned no scenarios")}
	}

	// Validate the full batch before any insert — partial persistence on a
	// schema mismatch is worse than regenerating.
	validated := make([]Scenario, 0, len(batch.Scenarios))
	for i, rawScenario := range batch.Scenarios {
		sc, err := ValidateScenario(rawScenario)
		if err != nil {
			return nil, &GenerationError{Err: fmt.Errorf("candidate %d: %w", i, err)}
		}
		validated = append(validated, sc)
	}

	stored := make([]Scenario, 0, len(validated))
	for _, sc := range validated {
		id, err := e.store.InsertScenario(sc)
		if err != nil {
			return stored, err
		}
		full, err := e.store.GetScenario(id)
		if err != nil {
			return stored, err
		}
		stored = append(stored, *full)
	}

	log.Printf("[kubedrill] Generated %d scenario(s) from prompt %q", len(stored), prompt)
	return stored, nil
}

// buildGenerationPrompt gathers all learner notes plus the most recent
// scenarios and folds them around the caller's topic prompt.
func (e *Engine) buildGenerationPrompt(prompt string) (string, error) {
	notes, err := e.store.GetNotes()
	if err != nil {
		return "", err
	}
	recent, err := e.recentScenarios(e.config.HistoryWindow)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	if len(notes) > 0 {
		b.WriteString("Learner notes (newest first):\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n.Content)
		}
		b.WriteString("\n")
	}

	if len(recent) > 0 {
		b.WriteString("Recently generated scenarios (avoid repeating these):\n")
		for _, sc := range recent {
			fmt.Fprintf(&b, "- #%d %s: %s\n", sc.ID, sc.Title, sc.Description)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Create %d new practice scenario(s) for this request:\n%s\n", e.config.GenerateCount, prompt)

	return b.String(), nil
}

// recentScenarios loads up to window scenarios ending at the last assigned
// id. The lower bound is clamped to the first scenario, and ids that were
// deleted in between are silently skipped.
func (e *Engine) recentScenarios(window int) ([]Scenario, error) {
	lastID, err := e.store.LastScenarioID()
	if err != nil {
		return nil, err
	}
	if lastID == 0 {
		return nil, nil
	}

	first := lastID - int64(window) + 1
	if first < 1 {
		first = 1
	}

	var result []Scenario
	for id := first; id <= lastID; id++ {
		sc, err := e.store.GetScenario(id)
		if err != nil {
			return nil, err
		}
		if sc == nil {
			continue // deleted id
		}
		result = append(result, *sc)
	}
	return result, nil
}
