package kubedrill

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func scenarioJSON(title string) string {
	return `{
		"title": "` + title + `",
		"description": "practice",
		"setup_commands": ["kubectl apply -f setup.yaml"],
		"tasks": ["inspect", "fix", "verify"],
		"hints": ["look closer"],
		"solution": {"explanation": "apply the fix", "commands": ["kubectl apply -f fix.yaml"]},
		"verification_commands": ["kubectl get pods"]
	}`
}

func batchJSON(titles ...string) json.RawMessage {
	var scenarios []string
	for _, title := range titles {
		scenarios = append(scenarios, scenarioJSON(title))
	}
	return json.RawMessage(`{"scenarios": [` + strings.Join(scenarios, ",") + `]}`)
}

func TestGenerateScenariosStoresBatch(t *testing.T) {
	stub := &stubProvider{responses: []json.RawMessage{batchJSON("one", "two")}}
	e := testEngine(t, stub)

	e.AddNote("weak at networking")

	scenarios, err := e.GenerateScenarios(context.Background(), "practice network policies")
	if err != nil {
		t.Fatal(err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	if scenarios[1].ID <= scenarios[0].ID {
		t.Errorf("expected strictly increasing ids: %d then %d", scenarios[0].ID, scenarios[1].ID)
	}

	// Each stored scenario is retrievable and matches the stub output
	for i, want := range []string{"one", "two"} {
		stored, err := e.Scenario(scenarios[i].ID)
		if err != nil {
			t.Fatal(err)
		}
		if stored == nil || stored.Title != want {
			t.Errorf("scenario %d: expected title %q, got %+v", i, want, stored)
		}
		if len(stored.Tasks) != 3 {
			t.Errorf("scenario %d: tasks not preserved", i)
		}
	}
}

func TestGeneratePromptCarriesContext(t *testing.T) {
	stub := &stubProvider{responses: []json.RawMessage{batchJSON("seed")}}
	e := testEngine(t, stub)

	e.AddNote("weak at networking")
	if _, err := e.GenerateScenarios(context.Background(), "first round"); err != nil {
		t.Fatal(err)
	}

	stub.responses = []json.RawMessage{batchJSON("next")}
	if _, err := e.GenerateScenarios(context.Background(), "practice ingress"); err != nil {
		t.Fatal(err)
	}

	req := stub.requests[len(stub.requests)-1]
	if !strings.Contains(req.Prompt, "weak at networking") {
		t.Error("prompt missing learner notes")
	}
	if !strings.Contains(req.Prompt, "seed") {
		t.Error("prompt missing recent scenario context")
	}
	if !strings.Contains(req.Prompt, "practice ingress") {
		t.Error("prompt missing the caller's request")
	}
	if req.Schema == nil {
		t.Error("expected a response schema on the request")
	}
}

func TestGenerateSkipsDeletedRecentIDs(t *testing.T) {
	stub := &stubProvider{responses: []json.RawMessage{batchJSON("a"), batchJSON("b"), batchJSON("c")}}
	e := testEngine(t, stub)

	first, _ := e.GenerateScenarios(context.Background(), "one")
	e.GenerateScenarios(context.Background(), "two")
	e.DeleteScenario(first[0].ID)

	// Must not error on the gap left by the deleted id
	if _, err := e.GenerateScenarios(context.Background(), "three"); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateProviderFailureStoresNothing(t *testing.T) {
	stub := &stubProvider{err: &CapabilityError{Provider: "stub", Reason: "timeout"}}
	e := testEngine(t, stub)

	_, err := e.GenerateScenarios(context.Background(), "anything")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	var cerr *CapabilityError
	if !errors.As(err, &cerr) {
		t.Error("expected wrapped CapabilityError")
	}

	list, _ := e.Scenarios()
	if len(list) != 0 {
		t.Errorf("expected no rows after failure, got %d", len(list))
	}
}

func TestGenerateInvalidCandidateStoresNothing(t *testing.T) {
	// Second candidate is missing its tasks — the whole batch must be rejected
	bad := json.RawMessage(`{"scenarios": [` + scenarioJSON("ok") + `,
		{"title": "broken", "solution": {"explanation": "e", "commands": ["c"]}}]}`)
	stub := &stubProvider{responses: []json.RawMessage{bad}}
	e := testEngine(t, stub)

	_, err := e.GenerateScenarios(context.Background(), "anything")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Error("expected wrapped ValidationError")
	}

	list, _ := e.Scenarios()
	if len(list) != 0 {
		t.Errorf("expected no rows after invalid batch, got %d", len(list))
	}
}

func TestGenerateMalformedPayloadStoresNothing(t *testing.T) {
	stub := &stubProvider{responses: []json.RawMessage{json.RawMessage(`not json at all`)}}
	e := testEngine(t, stub)

	_, err := e.GenerateScenarios(context.Background(), "anything")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}

	list, _ := e.Scenarios()
	if len(list) != 0 {
		t.Errorf("expected no rows, got %d", len(list))
	}
}

func TestGenerateEmptyBatchFails(t *testing.T) {
	stub := &stubProvider{responses: []json.RawMessage{json.RawMessage(`{"scenarios": []}`)}}
	e := testEngine(t, stub)

	if _, err := e.GenerateScenarios(context.Background(), "anything"); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestGenerateWithoutProviderFails(t *testing.T) {
	e := testEngine(t, nil)

	_, err := e.GenerateScenarios(context.Background(), "anything")
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
}
