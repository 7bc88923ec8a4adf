package models

import "time"

// ExecutionStatus represents the lifecycle state of one workflow run.
// Records are created running and transition exactly once to success or
// failed; they are immutable afterwards.
type ExecutionStatus string

const (
	ExecutionStatusRunning ExecutionStatus = "running"
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// Valid reports whether the status is one of the known execution states.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusRunning, ExecutionStatusSuccess, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// ExecutionRecord is the durable trace of one workflow run. Result is set
// only on success, ErrorMessage only on failed, and CompletedAt only once
// the run is terminal.
type ExecutionRecord struct {
	ID           string          `json:"id"`
	WorkflowID   string          `json:"workflow_id"`
	Status       ExecutionStatus `json:"status"`
	Payload      map[string]any  `json:"payload,omitempty"`
	Result       map[string]any  `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewExecutionRecord creates a record in the running state, stamped with
// the triggering payload. The dispatcher persists it before enqueueing.
func NewExecutionRecord(id, workflowID string, payload map[string]any) *ExecutionRecord {
	return &ExecutionRecord{
		ID:         id,
		WorkflowID: workflowID,
		Status:     ExecutionStatusRunning,
		Payload:    payload,
		StartedAt:  time.Now().UTC(),
	}
}

// ExecutionContext is the per-run accumulated state: node id to that
// node's output fragment. It is owned by a single worker for the run's
// lifetime and grows monotonically as nodes succeed.
type ExecutionContext map[string]any

// Fold stores a node's output fragment under its id. A nil fragment is
// folded as an empty map so templates can reference the node without
// special cases.
func (c ExecutionContext) Fold(nodeID string, fragment map[string]any) {
	if fragment == nil {
		fragment = map[string]any{}
	}

	c[nodeID] = fragment
}

// Snapshot returns a shallow copy suitable for storing as a record result.
func (c ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}

	return out
}
