// Package models defines the core domain models for webhook-driven
// workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"   // Accepts webhook triggers
	WorkflowStatusInactive WorkflowStatus = "inactive" // Stored but not triggerable
)

// Valid reports whether the status is one of the known workflow states.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusActive, WorkflowStatusInactive:
		return true
	default:
		return false
	}
}

// NodeKind identifies one of the closed set of node kinds the engine can
// execute. Position 0 of every workflow is a trigger; everything after it
// is an action or filter.
type NodeKind string

const (
	NodeKindTrigger    NodeKind = "trigger"
	NodeKindHTTPAction NodeKind = "http_action"
	NodeKindFilter     NodeKind = "filter"
)

// Valid reports whether the kind is one of the known node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindTrigger, NodeKindHTTPAction, NodeKindFilter:
		return true
	default:
		return false
	}
}

// Workflow represents a stored workflow definition: an ordered node chain
// triggered by a webhook. WebhookPath denormalizes the trigger node's path
// so ingress can look workflows up without decoding node configs.
type Workflow struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"         validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"       validate:"required,oneof=active inactive"`
	WebhookPath string          `json:"webhook_path"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Owner       string          `json:"owner"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// WorkflowNode is one stored step of a workflow. Config stays an untyped
// mapping in storage; the plan builder decodes it into the typed per-kind
// variant exactly once, at build time.
type WorkflowNode struct {
	ID     string         `json:"id"   validate:"required"`
	Kind   NodeKind       `json:"kind" validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

// IsActive reports whether the workflow accepts webhook triggers.
func (w *Workflow) IsActive() bool {
	return w.Status == WorkflowStatusActive
}

// TriggerNode returns the workflow's trigger node, or nil when the first
// node is missing or not a trigger. Validation guarantees position 0 for
// stored workflows; callers holding unvalidated input must handle nil.
func (w *Workflow) TriggerNode() *WorkflowNode {
	if len(w.Nodes) == 0 || w.Nodes[0].Kind != NodeKindTrigger {
		return nil
	}

	return w.Nodes[0]
}
