package kubedrill

import "time"

// Role identifies who authored a chat history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Status is the lifecycle state of a scenario's progress record.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Solution is the worked answer attached to a scenario. Commands are kept as
// an ordered list so the evaluation engine can inspect them individually.
type Solution struct {
	Explanation string   `json:"explanation"`
	Commands    []string `json:"commands"`
}

// Scenario is a structured practice exercise. Rows are immutable after
// insert: generation creates them in bulk, deletion removes them explicitly,
// and nothing updates them in place.
type Scenario struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	SetupCommands        []string  `json:"setup_commands"`
	Tasks                []string  `json:"tasks"`
	Hints                []string  `json:"hints"`
	Solution             Solution  `json:"solution"`
	VerificationCommands []string  `json:"verification_commands"`
	CreatedAt            time.Time `json:"created_at"`
}

// ScenarioSummary is the listing shape returned by Store.ListScenarios.
type ScenarioSummary struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tasks       []string `json:"tasks"`
}

// Note is free-form learner-authored text used as generation context.
// Append-only; not tied to any scenario.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one append-only chat history entry for a scenario.
// Content is often a serialized evaluation payload.
type ChatMessage struct {
	ID         int64     `json:"id"`
	ScenarioID int64     `json:"scenario_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// Progress is the single live completion record for one scenario.
// CompletedTasks is always a prefix of the owning scenario's Tasks, in the
// same order, and only ever grows.
type Progress struct {
	ScenarioID     int64     `json:"scenario_id"`
	Status         Status    `json:"status"`
	CompletedTasks []string  `json:"completed_tasks"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Evaluation is the structured result of one progress-evaluation call.
type Evaluation struct {
	Progress float64 `json:"progress"`
	Feedback string  `json:"feedback"`
	NextHint string  `json:"next_hint"`
}

// Explanation is the structured result of a concept-explanation call.
type Explanation struct {
	Explanation     string   `json:"explanation"`
	Examples        []string `json:"examples"`
	RelatedConcepts []string `json:"related_concepts"`
}

// Troubleshooting is the structured result of an issue-troubleshooting call.
type Troubleshooting struct {
	Diagnosis string   `json:"diagnosis"`
	Steps     []string `json:"steps"`
	Commands  []string `json:"commands"`
}

// Config holds Engine initialization parameters.
type Config struct {
	DBPath         string             // Path to SQLite file (default: ./data/kubedrill.db)
	GeminiAPIKey   string             // Used to construct a default provider when none is given
	Provider       CompletionProvider // Explicit completion provider (overrides GeminiAPIKey)
	Runner         CommandRunner      // Command execution for the MCP run_command tool
	GenerateCount  int                // Scenarios requested per generation call (default 1)
	HistoryWindow  int                // Recent scenarios included as generation context (default 5)
	RequestTimeout time.Duration      // Bound on a single provider call (default 60s)
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/kubedrill.db"
	}
	if c.GenerateCount <= 0 {
		c.GenerateCount = 1
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 5
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
}
