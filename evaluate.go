package kubedrill

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const evaluateInstructions = `You are an expert Kubernetes instructor evaluating a learner working through a practice scenario.
Score how far the learner has progressed overall as a number between 0 and 1, give concrete feedback
on their latest actions, and offer a hint toward the next step without revealing the solution.`

// EvaluateProgress scores the learner's submitted actions against a scenario
// and advances the persisted progress record.
//
// The provider call happens first; if it fails nothing is written
// (*EvaluationError). On success the exchange is appended to chat history and
// the score is folded into completed_tasks by the advancement rule — both in
// one transaction. Calls for the same scenario are serialized, so two
// concurrent evaluations cannot both advance from the same completed count.
func (e *Engine) EvaluateProgress(ctx context.Context, scenarioID int64, userActions []string) (*Evaluation, error) {
	if e.provider == nil {
		return nil, &EvaluationError{ScenarioID: scenarioID, Err: &CapabilityError{Provider: "none", Reason: "no completion provider configured"}}
	}

	lock := e.scenarioLock(scenarioID)
	lock.Lock()
	defer lock.Unlock()

	sc, err := e.store.GetScenario(scenarioID)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, &NotFoundError{ID: scenarioID}
	}

	history, err := e.store.GetChatHistory(scenarioID)
	if err != nil {
		return nil, err
	}
	prior, err := e.store.GetProgress(scenarioID)
	if err != nil {
		return nil, err
	}
	var completed []string
	if prior != nil {
		completed = prior.CompletedTasks
	}

	raw, err := e.provider.Complete(ctx, CompletionRequest{
		Instructions: evaluateInstructions,
		Prompt:       buildEvaluationPrompt(sc, history, completed, userActions),
		Schema:       evaluationSchema(),
	})
	if err != nil {
		return nil, &EvaluationError{ScenarioID: scenarioID, Err: err}
	}

	var eval Evaluation
	if err := json.Unmarshal(raw, &eval); err != nil {
		return nil, &EvaluationError{ScenarioID: scenarioID, Err: fmt.Errorf("malformed evaluation: %w", err)}
	}

	advanced := AdvanceTasks(sc.Tasks, completed, eval.Progress)

	userContent := ""
	if len(userActions) > 0 {
		userContent = strings.Join(userActions, "\n")
	}
	if err := e.store.RecordEvaluation(scenarioID, userContent, string(raw), StatusInProgress, advanced); err != nil {
		return nil, err
	}

	log.Printf("[kubedrill] Evaluated scenario #%d: score=%.2f, completed %d/%d tasks",
		scenarioID, eval.Progress, len(advanced), len(sc.Tasks))
	return &eval, nil
}

// buildEvaluationPrompt folds the scenario, the chronological chat history,
// the current completed-task state, and the new actions into one request.
func buildEvaluationPrompt(sc *Scenario, history []ChatMessage, completed, userActions []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scenario: %s\n%s\n\n", sc.Title, sc.Description)

	b.WriteString("Tasks:\n")
	for i, task := range sc.Tasks {
		marker := " "
		if i < len(completed) {
			marker = "x"
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, marker, task)
	}
	b.WriteString("\n")

	if len(sc.Solution.Commands) > 0 {
		b.WriteString("Reference solution commands (do not reveal these):\n")
		for _, cmd := range sc.Solution.Commands {
			fmt.Fprintf(&b, "  %s\n", cmd)
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("Conversation so far (oldest first):\n")
		for _, m := range history {
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	if len(userActions) == 0 {
		b.WriteString("The learner submitted no new actions this turn.\n")
	} else {
		b.WriteString("The learner's latest actions:\n")
		for _, a := range userActions {
			fmt.Fprintf(&b, "  %s\n", a)
		}
	}

	return b.String()
}
