// Package web provides the HTTP handlers and request/response types for
// the workflow and execution API.
package web

import (
	"time"

	"github.com/hookflow/hookflow/pkg/models"
)

// CreateWorkflowRequest is the body of POST /workflows and PUT
// /workflows/:id. Node configs stay untyped here; the plan builder decodes
// them and reports every definition problem in one response.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"             validate:"required,min=3"`
	Description string         `json:"description"`
	Status      string         `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Nodes       []NodeRequest  `json:"nodes"            validate:"required,min=1,dive"`
	Owner       string         `json:"owner"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NodeRequest is one node of a submitted definition. Kind is checked by the
// plan builder so unknown kinds land in the same 422 as the other
// definition problems.
type NodeRequest struct {
	ID     string         `json:"id"   validate:"required"`
	Kind   string         `json:"kind" validate:"required"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config"`
}

// ToWorkflow converts the request into the domain model.
func (r *CreateWorkflowRequest) ToWorkflow() *models.Workflow {
	nodes := make([]*models.WorkflowNode, 0, len(r.Nodes))
	for _, node := range r.Nodes {
		nodes = append(nodes, &models.WorkflowNode{
			ID:     node.ID,
			Kind:   models.NodeKind(node.Kind),
			Name:   node.Name,
			Config: node.Config,
		})
	}

	return &models.Workflow{
		Name:        r.Name,
		Description: r.Description,
		Status:      models.WorkflowStatus(r.Status),
		Nodes:       nodes,
		Owner:       r.Owner,
		Metadata:    r.Metadata,
	}
}

// UpdateStatusRequest is the body of PATCH /workflows/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// ExecutionSummary is the list-view projection of an execution record:
// everything except the payload and result bodies.
type ExecutionSummary struct {
	ID           string     `json:"id"`
	WorkflowID   string     `json:"workflow_id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TransformExecutionSummary projects an execution record into its summary.
func TransformExecutionSummary(record *models.ExecutionRecord) ExecutionSummary {
	return ExecutionSummary{
		ID:           record.ID,
		WorkflowID:   record.WorkflowID,
		Status:       string(record.Status),
		ErrorMessage: record.ErrorMessage,
		StartedAt:    record.StartedAt,
		CompletedAt:  record.CompletedAt,
	}
}
