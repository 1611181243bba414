package kubedrill

import "fmt"

// ValidationError reports a generated scenario candidate that fails the
// structural contract. Not retried automatically; the caller re-prompts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("kubedrill: invalid scenario: %s: %s", e.Field, e.Reason)
}

// CapabilityError reports a failed call to the external generative
// capability: unreachable, timed out, non-2xx, or unusable output.
type CapabilityError struct {
	Provider string
	Status   int // HTTP status, 0 if the request never completed
	Reason   string
	Err      error
}

func (e *CapabilityError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("kubedrill: %s: %d: %s", e.Provider, e.Status, e.Reason)
	}
	return fmt.Sprintf("kubedrill: %s: %s", e.Provider, e.Reason)
}

func (e *CapabilityError) Unwrap() error { return e.Err }

// NotFoundError reports an operation that referenced a scenario id with no
// stored row. Plain lookups return nil instead; this is for operations that
// require the scenario to exist.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kubedrill: scenario %d not found", e.ID)
}

// StorageError reports a persistence I/O failure. Always propagated, never
// swallowed: silent data loss would corrupt the monotonic progress invariant.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("kubedrill: store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// GenerationError wraps any failure during scenario generation (capability
// failure or schema mismatch). Nothing is persisted when it is returned.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("kubedrill: generate scenarios: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// EvaluationError wraps a capability failure during progress evaluation,
// surfaced before any chat or progress write happens.
type EvaluationError struct {
	ScenarioID int64
	Err        error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("kubedrill: evaluate scenario %d: %v", e.ScenarioID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
