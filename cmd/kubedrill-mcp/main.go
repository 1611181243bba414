// kubedrill-mcp exposes kubedrill as an MCP stdio server.
//
// Environment variables:
//
//	KUBEDRILL_DB_PATH — SQLite database path (default: ./data/kubedrill.db)
//	GEMINI_API_KEY    — Gemini API key for scenario generation + evaluation
//
// Usage:
//
//	go install github.com/kubedrill/kubedrill/cmd/kubedrill-mcp
//	kubedrill-mcp
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/kubedrill/kubedrill"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	dbPath := os.Getenv("KUBEDRILL_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/kubedrill.db"
	}

	cfg := kubedrill.Config{
		DBPath:       dbPath,
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
	}

	eng, err := kubedrill.Init(cfg)
	if err != nil {
		log.Fatalf("kubedrill init: %v", err)
	}
	defer eng.Close()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kubedrill-mcp",
		Version: "1.0.0",
	}, nil)

	// --- Tool: generate_scenarios ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_scenarios",
		Description: "Generate new practice scenarios from a topic prompt, grounded in learner notes and recent scenarios. Persists and returns the stored scenarios.",
	}, generateHandler(eng))

	// --- Tool: list_scenarios ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_scenarios",
		Description: "List all stored practice scenarios, newest first.",
	}, listScenariosHandler(eng))

	// --- Tool: get_scenario ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_scenario",
		Description: "Fetch one scenario by id, including setup, tasks, hints, solution and verification commands.",
	}, getScenarioHandler(eng))

	// --- Tool: delete_scenario ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_scenario",
		Description: "Delete a scenario along with its chat history and progress.",
	}, deleteScenarioHandler(eng))

	// --- Tool: add_note ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_note",
		Description: "Store a free-form learner note. Notes feed into future scenario generation as context.",
	}, addNoteHandler(eng))

	// --- Tool: list_notes ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notes",
		Description: "List all learner notes, newest first.",
	}, listNotesHandler(eng))

	// --- Tool: evaluate_progress ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "evaluate_progress",
		Description: "Score the learner's submitted actions against a scenario, advance the completed-task list, and return feedback plus the next hint.",
	}, evaluateHandler(eng))

	// --- Tool: get_progress ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_progress",
		Description: "Fetch the live progress record for a scenario.",
	}, getProgressHandler(eng))

	// --- Tool: chat_history ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat_history",
		Description: "Fetch a scenario's chat and evaluation history in chronological order.",
	}, chatHistoryHandler(eng))

	// --- Tool: explain_concept ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "explain_concept",
		Description: "Explain a Kubernetes concept with examples and related concepts. No persistence side effects.",
	}, explainHandler(eng))

	// --- Tool: troubleshoot ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "troubleshoot",
		Description: "Diagnose a described cluster issue with ordered steps and suggested commands. No persistence side effects.",
	}, troubleshootHandler(eng))

	// --- Tool: run_command ---
	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_command",
		Description: "Run a single kubectl command against the local cluster and return its output.",
	}, runCommandHandler(eng))

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("kubedrill-mcp: %v", err)
	}
}

// --- Input types ---

type generateInput struct {
	Prompt string `json:"prompt" jsonschema:"Topic or request to build practice scenarios around"`
}

type scenarioIDInput struct {
	ScenarioID int64 `json:"scenario_id" jsonschema:"Scenario id"`
}

type addNoteInput struct {
	Content string `json:"content" jsonschema:"Free-form note about the learner's progress or weaknesses"`
}

type emptyInput struct{}

type evaluateInput struct {
	ScenarioID  int64    `json:"scenario_id"            jsonschema:"Scenario id being practiced"`
	UserActions []string `json:"user_actions,omitempty" jsonschema:"Commands or actions the learner performed this turn"`
}

type explainInput struct {
	Concept string `json:"concept" jsonschema:"Concept to explain, e.g. network policies"`
}

type troubleshootInput struct {
	Issue string `json:"issue" jsonschema:"Description of the problem observed in the cluster"`
}

type runCommandInput struct {
	Command string `json:"command" jsonschema:"A single kubectl command to execute"`
}

// --- Handlers ---

func generateHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, generateInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input generateInput) (*mcp.CallToolResult, any, error) {
		scenarios, err := eng.GenerateScenarios(ctx, input.Prompt)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(scenarios)), nil, nil
	}
}

func listScenariosHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
		scenarios, err := eng.Scenarios()
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(scenarios)), nil, nil
	}
}

func getScenarioHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, scenarioIDInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input scenarioIDInput) (*mcp.CallToolResult, any, error) {
		sc, err := eng.Scenario(input.ScenarioID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		if sc == nil {
			return textResult(fmt.Sprintf(`{"error": "scenario %d not found"}`, input.ScenarioID)), nil, nil
		}
		return textResult(jsonString(sc)), nil, nil
	}
}

func deleteScenarioHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, scenarioIDInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input scenarioIDInput) (*mcp.CallToolResult, any, error) {
		deleted, err := eng.DeleteScenario(input.ScenarioID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"scenario_id": input.ScenarioID,
			"deleted":     deleted,
		})), nil, nil
	}
}

func addNoteHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, addNoteInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input addNoteInput) (*mcp.CallToolResult, any, error) {
		id, err := eng.AddNote(input.Content)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(map[string]any{
			"note_id": id,
			"status":  "stored",
		})), nil, nil
	}
}

func listNotesHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, emptyInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input emptyInput) (*mcp.CallToolResult, any, error) {
		notes, err := eng.Notes()
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(notes)), nil, nil
	}
}

func evaluateHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, evaluateInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input evaluateInput) (*mcp.CallToolResult, any, error) {
		eval, err := eng.EvaluateProgress(ctx, input.ScenarioID, input.UserActions)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(eval)), nil, nil
	}
}

func getProgressHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, scenarioIDInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input scenarioIDInput) (*mcp.CallToolResult, any, error) {
		progress, err := eng.Progress(input.ScenarioID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		if progress == nil {
			return textResult(`{"status": "not_started", "completed_tasks": []}`), nil, nil
		}
		return textResult(jsonString(progress)), nil, nil
	}
}

func chatHistoryHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, scenarioIDInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input scenarioIDInput) (*mcp.CallToolResult, any, error) {
		history, err := eng.ChatHistory(input.ScenarioID)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(history)), nil, nil
	}
}

func explainHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, explainInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input explainInput) (*mcp.CallToolResult, any, error) {
		out, err := eng.ExplainConcept(ctx, input.Concept)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(out)), nil, nil
	}
}

func troubleshootHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, troubleshootInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input troubleshootInput) (*mcp.CallToolResult, any, error) {
		out, err := eng.TroubleshootIssue(ctx, input.Issue)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(jsonString(out)), nil, nil
	}
}

func runCommandHandler(eng *kubedrill.Engine) func(context.Context, *mcp.CallToolRequest, runCommandInput) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input runCommandInput) (*mcp.CallToolResult, any, error) {
		out, err := eng.RunCommand(ctx, input.Command)
		if err != nil {
			return textResult(fmt.Sprintf("error: %v", err)), nil, nil
		}
		return textResult(out), nil, nil
	}
}

// --- Helpers ---

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonString(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "marshal: %v"}`, err)
	}
	return string(data)
}
