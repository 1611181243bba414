package kubedrill

import (
	"context"
	"log"
	"sync"
)

// Engine is the scenario lifecycle and progress-evaluation engine.
// It owns the store handle and the completion provider; every read goes back
// to the store, never to an in-process cache, so the monotonic progress
// invariant cannot be corrupted by staleness.
type Engine struct {
	store    *Store
	provider CompletionProvider
	runner   CommandRunner
	config   Config

	mu    sync.Mutex
	locks map[int64]*sync.Mutex // per-scenario evaluation serialization
}

// Init creates an Engine, opens the store, and resolves providers.
// The provider comes from Config.Provider, or is constructed from
// GeminiAPIKey when unset. A nil provider is allowed: read and note
// operations still work, generation and evaluation fail with CapabilityError.
func Init(cfg Config) (*Engine, error) {
	cfg.ApplyDefaults()

	store, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	provider := cfg.Provider
	if provider == nil && cfg.GeminiAPIKey != "" {
		provider = NewGeminiCompleter(cfg.GeminiAPIKey, WithGeminiTimeout(cfg.RequestTimeout))
	}

	runner := cfg.Runner
	if runner == nil {
		runner = NewKubectlRunner()
	}

	e := &Engine{
		store:    store,
		provider: provider,
		runner:   runner,
		config:   cfg,
		locks:    make(map[int64]*sync.Mutex),
	}

	log.Printf("[kubedrill] Initialized (db=%s, batch=%d)", cfg.DBPath, cfg.GenerateCount)
	return e, nil
}

// scenarioLock returns the mutex serializing evaluations for one scenario.
// Progress upserts are last-writer-wins in the store; without this lock two
// concurrent evaluations could both read k completed tasks and the
// advancement rule would over- or under-advance.
func (e *Engine) scenarioLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// AddNote appends a free-form learner note used as generation context.
func (e *Engine) AddNote(content string) (int64, error) {
	return e.store.InsertNote(content)
}

// Notes returns all learner notes, newest first.
func (e *Engine) Notes() ([]Note, error) {
	return e.store.GetNotes()
}

// Scenario returns one scenario by id, or nil if it does not exist.
func (e *Engine) Scenario(id int64) (*Scenario, error) {
	return e.store.GetScenario(id)
}

// Scenarios returns summaries of all stored scenarios, newest first.
func (e *Engine) Scenarios() ([]ScenarioSummary, error) {
	return e.store.ListScenarios()
}

// DeleteScenario removes a scenario and its chat/progress rows.
// Returns true iff the scenario existed.
func (e *Engine) DeleteScenario(id int64) (bool, error) {
	deleted, err := e.store.DeleteScenario(id)
	if err != nil {
		return false, err
	}
	if deleted {
		e.mu.Lock()
		delete(e.locks, id)
		e.mu.Unlock()
		log.Printf("[kubedrill] Deleted scenario #%d", id)
	}
	return deleted, nil
}

// Progress returns the live progress record for a scenario, or nil if the
// learner has not been evaluated against it yet.
func (e *Engine) Progress(scenarioID int64) (*Progress, error) {
	return e.store.GetProgress(scenarioID)
}

// ChatHistory returns a scenario's chat entries oldest-first.
func (e *Engine) ChatHistory(scenarioID int64) ([]ChatMessage, error) {
	return e.store.GetChatHistory(scenarioID)
}

// RunCommand executes a command through the configured runner.
func (e *Engine) RunCommand(ctx context.Context, command string) (string, error) {
	return e.runner.Run(ctx, command)
}

// Close shuts down the store.
func (e *Engine) Close() error {
	return e.store.Close()
}
