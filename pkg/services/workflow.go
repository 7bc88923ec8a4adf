package services

import (
	"context"
	"fmt"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/plan"
)

const (
	defaultWorkflowListLimit = 20
	maxListLimit             = 100
)

// Workflow manages stored workflow definitions. Every definition passes the
// plan builder before it is saved, so a stored workflow always builds and
// its WebhookPath always mirrors the trigger node's path.
type Workflow struct {
	persistence persistence.Persistence
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: persistence,
	}
}

// HealthCheck reports the persistence layer's health for readiness probes.
func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new workflow. An empty status defaults to
// active, so a freshly saved workflow is immediately triggerable. The
// returned error is a *plan.ValidationError when the definition is invalid
// and flowerr.ErrWebhookPathTaken when another workflow claims the path.
func (s *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	built, err := plan.Build(workflow)
	if err != nil {
		return nil, err
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusActive
	}

	if !workflow.Status.Valid() {
		return nil, invalidStatus(string(workflow.Status))
	}

	workflow.WebhookPath = built.TriggerNode().Trigger.Path

	err = s.persistence.WorkflowRepository().Create(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces an existing workflow's definition. An empty status keeps
// the stored one.
func (s *Workflow) Update(ctx context.Context, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	existing, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt

	if workflow.Status == "" {
		workflow.Status = existing.Status
	}

	if !workflow.Status.Valid() {
		return nil, invalidStatus(string(workflow.Status))
	}

	built, err := plan.Build(workflow)
	if err != nil {
		return nil, err
	}

	workflow.WebhookPath = built.TriggerNode().Trigger.Path

	err = s.persistence.WorkflowRepository().Update(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// SetStatus activates or deactivates a workflow without touching its
// definition.
func (s *Workflow) SetStatus(ctx context.Context, workflowID string, status models.WorkflowStatus) (*models.Workflow, error) {
	if !status.Valid() {
		return nil, invalidStatus(string(status))
	}

	existing, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if existing.Status == status {
		return existing, nil
	}

	existing.Status = status

	err = s.persistence.WorkflowRepository().Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow status: %w", err)
	}

	return existing, nil
}

// FetchByID retrieves a workflow by its ID.
func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.WorkflowRepository().GetByID(ctx, id)
}

// ListWorkflowsRequest narrows and pages the workflow list.
type ListWorkflowsRequest struct {
	Status string
	Limit  int
	Offset int
}

// List returns stored workflows, newest first. The limit defaults to 20 and
// is capped at 100.
func (s *Workflow) List(ctx context.Context, req ListWorkflowsRequest) ([]*models.Workflow, error) {
	if req.Status != "" && !models.WorkflowStatus(req.Status).Valid() {
		return nil, invalidStatus(req.Status)
	}

	if req.Limit <= 0 {
		req.Limit = defaultWorkflowListLimit
	}

	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	workflows, err := s.persistence.WorkflowRepository().List(ctx, persistence.ListOptions{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// Delete removes a workflow by its ID. Its execution records are kept.
func (s *Workflow) Delete(ctx context.Context, workflowID string) error {
	return s.persistence.WorkflowRepository().Delete(ctx, workflowID)
}
