package kubedrill

import (
	"path/filepath"
	"reflect"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleScenario() Scenario {
	return Scenario{
		Title:         "Broken ingress routing",
		Description:   "Traffic to the web service returns 404s",
		SetupCommands: []string{"kubectl apply -f ingress.yaml"},
		Tasks:         []string{"Inspect the ingress", "Fix the backend service name", "Verify routing"},
		Hints:         []string{"Compare service names", "Check the ingress backend spec"},
		Solution: Solution{
			Explanation: "The ingress points at a service that does not exist",
			Commands:    []string{"kubectl edit ingress web", "kubectl get endpoints web"},
		},
		VerificationCommands: []string{"curl -s http://web.local/healthz"},
	}
}

func TestScenarioRoundTrip(t *testing.T) {
	s := testStore(t)

	in := sampleScenario()
	id, err := s.InsertScenario(in)
	if err != nil {
		t.Fatal(err)
	}
	if id <= 0 {
		t.Error("expected positive id")
	}

	out, err := s.GetScenario(id)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Fatal("expected scenario")
	}

	// Equal to the original modulo assigned id and timestamp
	in.ID = out.ID
	in.CreatedAt = out.CreatedAt
	if !reflect.DeepEqual(in, *out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, *out)
	}
}

func TestGetScenarioUnknownIsNil(t *testing.T) {
	s := testStore(t)

	sc, err := s.GetScenario(42)
	if err != nil {
		t.Fatal(err)
	}
	if sc != nil {
		t.Errorf("expected nil for unknown id, got %+v", sc)
	}
}

func TestScenarioIDsMonotonic(t *testing.T) {
	s := testStore(t)

	id1, _ := s.InsertScenario(sampleScenario())
	id2, _ := s.InsertScenario(sampleScenario())
	if id2 <= id1 {
		t.Errorf("expected strictly increasing ids: %d then %d", id1, id2)
	}
}

func TestDeleteScenarioIdempotent(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())

	deleted, err := s.DeleteScenario(id)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted {
		t.Error("expected first delete to report true")
	}

	deleted, err = s.DeleteScenario(id)
	if err != nil {
		t.Fatal(err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}

	sc, _ := s.GetScenario(id)
	if sc != nil {
		t.Error("expected nil after delete")
	}
}

func TestDeleteScenarioCascades(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())
	s.InsertChatMessage(id, RoleUser, "kubectl get pods")
	s.UpsertProgress(id, StatusInProgress, []string{"Inspect the ingress"})

	if _, err := s.DeleteScenario(id); err != nil {
		t.Fatal(err)
	}

	history, _ := s.GetChatHistory(id)
	if len(history) != 0 {
		t.Errorf("expected chat history removed, got %d entries", len(history))
	}
	progress, _ := s.GetProgress(id)
	if progress != nil {
		t.Errorf("expected progress removed, got %+v", progress)
	}
}

func TestLastScenarioID(t *testing.T) {
	s := testStore(t)

	id, err := s.LastScenarioID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Errorf("expected 0 on empty store, got %d", id)
	}

	id1, _ := s.InsertScenario(sampleScenario())
	id2, _ := s.InsertScenario(sampleScenario())

	last, err := s.LastScenarioID()
	if err != nil {
		t.Fatal(err)
	}
	if last != id2 {
		t.Errorf("expected last id %d, got %d", id2, last)
	}

	// Deleting the newest scenario must not move the sequence backwards
	s.DeleteScenario(id2)
	last, err = s.LastScenarioID()
	if err != nil {
		t.Fatal(err)
	}
	if last != id2 {
		t.Errorf("expected last id %d after delete, got %d", id2, last)
	}
	_ = id1
}

func TestListScenariosNewestFirst(t *testing.T) {
	s := testStore(t)

	first := sampleScenario()
	first.Title = "first"
	second := sampleScenario()
	second.Title = "second"

	s.InsertScenario(first)
	s.InsertScenario(second)

	list, err := s.ListScenarios()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(list))
	}
	if list[0].Title != "second" || list[1].Title != "first" {
		t.Errorf("expected newest first, got %q then %q", list[0].Title, list[1].Title)
	}
	if len(list[0].Tasks) != 3 {
		t.Errorf("expected tasks in summary, got %d", len(list[0].Tasks))
	}
}

func TestNotesNewestFirst(t *testing.T) {
	s := testStore(t)

	if _, err := s.InsertNote("weak at networking"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertNote("comfortable with deployments"); err != nil {
		t.Fatal(err)
	}

	notes, err := s.GetNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].Content != "comfortable with deployments" {
		t.Errorf("expected newest note first, got %q", notes[0].Content)
	}
}

func TestChatHistoryChronological(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())
	s.InsertChatMessage(id, RoleUser, "first")
	s.InsertChatMessage(id, RoleAssistant, "second")
	s.InsertChatMessage(id, RoleUser, "third")

	history, err := s.GetChatHistory(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	for i, want := range []string{"first", "second", "third"} {
		if history[i].Content != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, history[i].Content)
		}
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Error("roles not preserved")
	}
}

func TestChatHistoryScopedToScenario(t *testing.T) {
	s := testStore(t)

	id1, _ := s.InsertScenario(sampleScenario())
	id2, _ := s.InsertScenario(sampleScenario())
	s.InsertChatMessage(id1, RoleUser, "for one")
	s.InsertChatMessage(id2, RoleUser, "for two")

	history, _ := s.GetChatHistory(id1)
	if len(history) != 1 || history[0].Content != "for one" {
		t.Errorf("expected only scenario 1 history, got %+v", history)
	}
}

func TestUpsertProgressIdempotent(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())
	completed := []string{"Inspect the ingress"}

	if err := s.UpsertProgress(id, StatusInProgress, completed); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertProgress(id, StatusInProgress, completed); err != nil {
		t.Fatal(err)
	}

	p, err := s.GetProgress(id)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("expected progress")
	}
	if p.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", p.Status)
	}
	if !reflect.DeepEqual(p.CompletedTasks, completed) {
		t.Errorf("expected %v, got %v", completed, p.CompletedTasks)
	}
}

func TestGetProgressAbsentIsNil(t *testing.T) {
	s := testStore(t)

	p, err := s.GetProgress(7)
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("expected nil progress, got %+v", p)
	}
}

func TestRecordEvaluationAtomic(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())
	err := s.RecordEvaluation(id, "kubectl describe ingress web", `{"progress":0.5}`, StatusInProgress, []string{"Inspect the ingress"})
	if err != nil {
		t.Fatal(err)
	}

	history, _ := s.GetChatHistory(id)
	if len(history) != 2 {
		t.Fatalf("expected user + assistant entries, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("expected user then assistant, got %s then %s", history[0].Role, history[1].Role)
	}

	p, _ := s.GetProgress(id)
	if p == nil || len(p.CompletedTasks) != 1 {
		t.Fatalf("expected progress with 1 completed task, got %+v", p)
	}
}

func TestRecordEvaluationNoUserContent(t *testing.T) {
	s := testStore(t)

	id, _ := s.InsertScenario(sampleScenario())
	if err := s.RecordEvaluation(id, "", `{"progress":0}`, StatusInProgress, nil); err != nil {
		t.Fatal(err)
	}

	history, _ := s.GetChatHistory(id)
	if len(history) != 1 {
		t.Fatalf("expected assistant entry only, got %d", len(history))
	}
	if history[0].Role != RoleAssistant {
		t.Errorf("expected assistant role, got %s", history[0].Role)
	}
}

func TestNullCompositeColumnsDecodeEmpty(t *testing.T) {
	s := testStore(t)

	// Simulate a partial write: required columns only, composites NULL
	_, err := s.db.Exec(`
		INSERT INTO scenarios (title, description, tasks, solution)
		VALUES ('bare', '', NULL, '{"explanation":"x","commands":["y"]}')`)
	if err != nil {
		t.Fatal(err)
	}

	last, _ := s.LastScenarioID()
	sc, err := s.GetScenario(last)
	if err != nil {
		t.Fatal(err)
	}
	if sc == nil {
		t.Fatal("expected scenario")
	}
	if sc.Tasks == nil || len(sc.Tasks) != 0 {
		t.Errorf("expected empty tasks for NULL column, got %v", sc.Tasks)
	}
	if sc.SetupCommands == nil || sc.Hints == nil {
		t.Error("expected empty slices, not nil")
	}
}

func TestNewStoreCreatesDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "nested", "test.db")
	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
}
