package kubedrill

import (
	"bytes"
	"encoding/json"
)

// scenarioBatch is the wire shape the generative capability is asked to
// produce for scenario generation.
type scenarioBatch struct {
	Scenarios []json.RawMessage `json:"scenarios"`
}

// candidate mirrors Scenario without id/timestamp, which are assigned at
// insert time, never by the model.
type candidate struct {
	Title                string   `json:"title"`
	Description          string   `json:"description"`
	SetupCommands        []string `json:"setup_commands"`
	Tasks                []string `json:"tasks"`
	Hints                []string `json:"hints"`
	Solution             Solution `json:"solution"`
	VerificationCommands []string `json:"verification_commands"`
}

// ValidateScenario checks a raw scenario candidate against the structural
// contract and returns the typed record. Unknown fields are ignored for
// forward compatibility; use ValidateScenarioStrict to reject them.
// Failures are returned as *ValidationError.
func ValidateScenario(raw json.RawMessage) (Scenario, error) {
	return validateScenario(raw, false)
}

// ValidateScenarioStrict is ValidateScenario with unknown fields rejected.
func ValidateScenarioStrict(raw json.RawMessage) (Scenario, error) {
	return validateScenario(raw, true)
}

func validateScenario(raw json.RawMessage, strict bool) (Scenario, error) {
	var c candidate
	dec := json.NewDecoder(bytes.NewReader(raw))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&c); err != nil {
		return Scenario{}, &ValidationError{Field: "scenario", Reason: err.Error()}
	}

	if c.Title == "" {
		return Scenario{}, &ValidationError{Field: "title", Reason: "must be non-empty"}
	}
	if len(c.Tasks) == 0 {
		return Scenario{}, &ValidationError{Field: "tasks", Reason: "must contain at least one task"}
	}
	for _, task := range c.Tasks {
		if task == "" {
			return Scenario{}, &ValidationError{Field: "tasks", Reason: "task entries must be non-empty"}
		}
	}
	if c.Solution.Explanation == "" {
		return Scenario{}, &ValidationError{Field: "solution.explanation", Reason: "must be non-empty"}
	}
	if len(c.Solution.Commands) == 0 {
		return Scenario{}, &ValidationError{Field: "solution.commands", Reason: "must contain at least one command"}
	}

	return Scenario{
		Title:                c.Title,
		Description:          c.Description,
		SetupCommands:        c.SetupCommands,
		Tasks:                c.Tasks,
		Hints:                c.Hints,
		Solution:             c.Solution,
		VerificationCommands: c.VerificationCommands,
	}, nil
}

// --- Response schemas ---
//
// Fixed JSON schemas handed to the completion provider so the model is
// constrained to the exact shapes the engines decode. Kept to the subset
// (type/properties/items/required) that Gemini, OpenAI and Ollama all accept.

func stringArraySchema(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

// scenarioListSchema constrains generation output to a batch of scenarios.
func scenarioListSchema() map[string]any {
	scenario := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":          map[string]any{"type": "string", "description": "Short scenario title"},
			"description":    map[string]any{"type": "string", "description": "What the learner will practice"},
			"setup_commands": stringArraySchema("Commands run before the learner starts"),
			"tasks":          stringArraySchema("Ordered tasks the learner must complete"),
			"hints":          stringArraySchema("Progressive hints, vague to specific"),
			"solution": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"explanation": map[string]any{"type": "string"},
					"commands":    stringArraySchema("Commands that solve the scenario"),
				},
				"required": []string{"explanation", "commands"},
			},
			"verification_commands": stringArraySchema("Commands that verify completion"),
		},
		"required": []string{"title", "description", "tasks", "solution"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"scenarios": map[string]any{
				"type":  "array",
				"items": scenario,
			},
		},
		"required": []string{"scenarios"},
	}
}

// evaluationSchema constrains progress-evaluation output.
func evaluationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"progress":  map[string]any{"type": "number", "description": "Overall completion estimate between 0 and 1"},
			"feedback":  map[string]any{"type": "string", "description": "Feedback on the submitted actions"},
			"next_hint": map[string]any{"type": "string", "description": "Hint for the next step, without giving it away"},
		},
		"required": []string{"progress", "feedback", "next_hint"},
	}
}

// explanationSchema constrains concept-explanation output.
func explanationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation":      map[string]any{"type": "string"},
			"examples":         stringArraySchema("Concrete usage examples"),
			"related_concepts": stringArraySchema("Adjacent concepts worth studying"),
		},
		"required": []string{"explanation"},
	}
}

// troubleshootSchema constrains issue-troubleshooting output.
func troubleshootSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"diagnosis": map[string]any{"type": "string"},
			"steps":     stringArraySchema("Ordered diagnostic steps"),
			"commands":  stringArraySchema("Commands to run while diagnosing"),
		},
		"required": []string{"diagnosis"},
	}
}
