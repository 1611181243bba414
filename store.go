package kubedrill

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite connection for scenario and session persistence.
// It is an explicit handle: constructed at process start, closed at shutdown.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("kubedrill: mkdir %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kubedrill: open db: %w", err)
	}

	// Single connection avoids write contention for our scale
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kubedrill: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	// Version tracking
	s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)

	var version int
	s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)

	if version < 1 {
		if _, err := s.db.Exec(`
			CREATE TABLE IF NOT EXISTS scenarios (
				id                    INTEGER PRIMARY KEY AUTOINCREMENT,
				title                 TEXT NOT NULL,
				description           TEXT NOT NULL DEFAULT '',
				setup_commands        TEXT,
				tasks                 TEXT NOT NULL,
				hints                 TEXT,
				solution              TEXT NOT NULL,
				verification_commands TEXT,
				created_at            TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS notes (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				content    TEXT NOT NULL,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE TABLE IF NOT EXISTS chat_history (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				scenario_id INTEGER NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);
			CREATE INDEX IF NOT EXISTS idx_chat_scenario ON chat_history(scenario_id);

			CREATE TABLE IF NOT EXISTS scenario_progress (
				scenario_id     INTEGER PRIMARY KEY,
				status          TEXT NOT NULL DEFAULT 'not_started',
				completed_tasks TEXT NOT NULL DEFAULT '[]',
				last_updated    TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`); err != nil {
			return err
		}
		s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
	}

	return nil
}

// --- JSON column encoding ---

// encodeStrings serializes an ordered string list for a TEXT column.
// nil encodes as an empty list so round-trips stay lossless.
func encodeStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeStrings deserializes a TEXT column back into an ordered string list.
// NULL or empty columns decode to an empty list, defensive against partial
// writes.
func decodeStrings(col sql.NullString) ([]string, error) {
	if !col.Valid || col.String == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(col.String), &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

const sqliteTimeLayout = "2006-01-02 15:04:05"

// --- Scenario CRUD ---

// InsertScenario stores a new scenario row and returns its assigned id.
// The insert and the id read happen in one transaction so concurrent writers
// never observe a half-assigned scenario.
func (s *Store) InsertScenario(sc Scenario) (int64, error) {
	setup, err := encodeStrings(sc.SetupCommands)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	tasks, err := encodeStrings(sc.Tasks)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	hints, err := encodeStrings(sc.Hints)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	verification, err := encodeStrings(sc.VerificationCommands)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	solution, err := json.Marshal(sc.Solution)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO scenarios (title, description, setup_commands, tasks, hints, solution, verification_commands)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.Title, sc.Description, setup, tasks, hints, string(solution), verification,
	)
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "insert scenario", Err: err}
	}
	return id, nil
}

func scanScenario(row *sql.Row) (*Scenario, error) {
	var sc Scenario
	var setup, tasks, hints, verification sql.NullString
	var solution string
	var created string

	err := row.Scan(
		&sc.ID, &sc.Title, &sc.Description, &setup, &tasks, &hints,
		&solution, &verification, &created,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if sc.SetupCommands, err = decodeStrings(setup); err != nil {
		return nil, err
	}
	if sc.Tasks, err = decodeStrings(tasks); err != nil {
		return nil, err
	}
	if sc.Hints, err = decodeStrings(hints); err != nil {
		return nil, err
	}
	if sc.VerificationCommands, err = decodeStrings(verification); err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(solution), &sc.Solution); err != nil {
		return nil, err
	}
	if sc.Solution.Commands == nil {
		sc.Solution.Commands = []string{}
	}
	sc.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
	return &sc, nil
}

// GetScenario returns the scenario for an id, or nil if it does not exist.
// Absence is a normal outcome here, not an error.
func (s *Store) GetScenario(id int64) (*Scenario, error) {
	row := s.db.QueryRow(`
		SELECT id, title, description, setup_commands, tasks, hints, solution, verification_commands, created_at
		FROM scenarios WHERE id = ?`, id)

	sc, err := scanScenario(row)
	if err != nil {
		return nil, &StorageError{Op: "get scenario", Err: err}
	}
	return sc, nil
}

// ListScenarios returns summaries for all scenarios, newest-created first.
func (s *Store) ListScenarios() ([]ScenarioSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, title, description, tasks
		FROM scenarios
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &StorageError{Op: "list scenarios", Err: err}
	}
	defer rows.Close()

	var results []ScenarioSummary
	for rows.Next() {
		var sum ScenarioSummary
		var tasks sql.NullString
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Description, &tasks); err != nil {
			return nil, &StorageError{Op: "list scenarios", Err: err}
		}
		if sum.Tasks, err = decodeStrings(tasks); err != nil {
			return nil, &StorageError{Op: "list scenarios", Err: err}
		}
		results = append(results, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list scenarios", Err: err}
	}
	return results, nil
}

// DeleteScenario removes a scenario along with its chat history and progress
// row in one transaction. Returns true iff a scenario row was removed;
// deleting an unknown id is not an error.
func (s *Store) DeleteScenario(id int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, &StorageError{Op: "delete scenario", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM scenarios WHERE id = ?`, id)
	if err != nil {
		return false, &StorageError{Op: "delete scenario", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, &StorageError{Op: "delete scenario", Err: err}
	}
	if affected > 0 {
		if _, err := tx.Exec(`DELETE FROM chat_history WHERE scenario_id = ?`, id); err != nil {
			return false, &StorageError{Op: "delete scenario", Err: err}
		}
		if _, err := tx.Exec(`DELETE FROM scenario_progress WHERE scenario_id = ?`, id); err != nil {
			return false, &StorageError{Op: "delete scenario", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, &StorageError{Op: "delete scenario", Err: err}
	}
	return affected > 0, nil
}

// LastScenarioID returns the highest id ever assigned, 0 on an empty store.
// The AUTOINCREMENT sequence never moves backwards, so the value holds even
// after deletions.
func (s *Store) LastScenarioID() (int64, error) {
	var id sql.NullInt64
	err := s.db.QueryRow(`SELECT seq FROM sqlite_sequence WHERE name = 'scenarios'`).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, &StorageError{Op: "last scenario id", Err: err}
	}
	return id.Int64, nil
}

// --- Notes ---

// InsertNote appends a learner note and returns its id.
func (s *Store) InsertNote(content string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO notes (content) VALUES (?)`, content)
	if err != nil {
		return 0, &StorageError{Op: "insert note", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "insert note", Err: err}
	}
	return id, nil
}

// GetNotes returns all learner notes, newest first.
func (s *Store) GetNotes() ([]Note, error) {
	rows, err := s.db.Query(`
		SELECT id, content, created_at FROM notes
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, &StorageError{Op: "get notes", Err: err}
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var created string
		if err := rows.Scan(&n.ID, &n.Content, &created); err != nil {
			return nil, &StorageError{Op: "get notes", Err: err}
		}
		n.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get notes", Err: err}
	}
	return notes, nil
}

// --- Chat history ---

// InsertChatMessage appends one chat entry for a scenario and returns its id.
// The scenario is not required to exist; history is append-only.
func (s *Store) InsertChatMessage(scenarioID int64, role Role, content string) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO chat_history (scenario_id, role, content) VALUES (?, ?, ?)`,
		scenarioID, string(role), content,
	)
	if err != nil {
		return 0, &StorageError{Op: "insert chat message", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "insert chat message", Err: err}
	}
	return id, nil
}

// GetChatHistory returns a scenario's chat entries oldest-first, the order
// they are replayed into generative-model context.
func (s *Store) GetChatHistory(scenarioID int64) ([]ChatMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, scenario_id, role, content, created_at
		FROM chat_history
		WHERE scenario_id = ?
		ORDER BY id ASC`,
		scenarioID)
	if err != nil {
		return nil, &StorageError{Op: "get chat history", Err: err}
	}
	defer rows.Close()

	var msgs []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var role, created string
		if err := rows.Scan(&m.ID, &m.ScenarioID, &role, &m.Content, &created); err != nil {
			return nil, &StorageError{Op: "get chat history", Err: err}
		}
		m.Role = Role(role)
		m.CreatedAt, _ = time.Parse(sqliteTimeLayout, created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get chat history", Err: err}
	}
	return msgs, nil
}

// --- Progress ---

// UpsertProgress writes the single live progress row for a scenario.
// Idempotent: repeating the same arguments leaves identical state apart from
// last_updated, which is overwritten on every call.
func (s *Store) UpsertProgress(scenarioID int64, status Status, completedTasks []string) error {
	encoded, err := encodeStrings(completedTasks)
	if err != nil {
		return &StorageError{Op: "upsert progress", Err: err}
	}
	_, err = s.db.Exec(`
		INSERT INTO scenario_progress (scenario_id, status, completed_tasks, last_updated)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(scenario_id) DO UPDATE SET
			status = excluded.status,
			completed_tasks = excluded.completed_tasks,
			last_updated = excluded.last_updated`,
		scenarioID, string(status), encoded,
	)
	if err != nil {
		return &StorageError{Op: "upsert progress", Err: err}
	}
	return nil
}

// GetProgress returns the progress row for a scenario, or nil if none exists.
func (s *Store) GetProgress(scenarioID int64) (*Progress, error) {
	var p Progress
	var status, completed, updated string

	err := s.db.QueryRow(`
		SELECT scenario_id, status, completed_tasks, last_updated
		FROM scenario_progress WHERE scenario_id = ?`,
		scenarioID,
	).Scan(&p.ScenarioID, &status, &completed, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Op: "get progress", Err: err}
	}

	p.Status = Status(status)
	if p.CompletedTasks, err = decodeStrings(sql.NullString{String: completed, Valid: true}); err != nil {
		return nil, &StorageError{Op: "get progress", Err: err}
	}
	p.LastUpdated, _ = time.Parse(sqliteTimeLayout, updated)
	return &p, nil
}

// RecordEvaluation persists one evaluation exchange atomically: the learner's
// submitted actions, the assistant's raw evaluation payload, and the updated
// progress row all land in one transaction, or none of them do.
func (s *Store) RecordEvaluation(scenarioID int64, userContent, assistantContent string, status Status, completedTasks []string) error {
	encoded, err := encodeStrings(completedTasks)
	if err != nil {
		return &StorageError{Op: "record evaluation", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "record evaluation", Err: err}
	}
	defer tx.Rollback()

	if userContent != "" {
		if _, err := tx.Exec(`
			INSERT INTO chat_history (scenario_id, role, content) VALUES (?, ?, ?)`,
			scenarioID, string(RoleUser), userContent,
		); err != nil {
			return &StorageError{Op: "record evaluation", Err: err}
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO chat_history (scenario_id, role, content) VALUES (?, ?, ?)`,
		scenarioID, string(RoleAssistant), assistantContent,
	); err != nil {
		return &StorageError{Op: "record evaluation", Err: err}
	}
	if _, err := tx.Exec(`
		INSERT INTO scenario_progress (scenario_id, status, completed_tasks, last_updated)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(scenario_id) DO UPDATE SET
			status = excluded.status,
			completed_tasks = excluded.completed_tasks,
			last_updated = excluded.last_updated`,
		scenarioID, string(status), encoded,
	); err != nil {
		return &StorageError{Op: "record evaluation", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "record evaluation", Err: err}
	}
	return nil
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
