package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

const defaultExecutionListLimit = 50

// Execution serves execution record queries and retention purges. Records
// are written only by the dispatcher and the runner; this service is the
// read side plus cleanup.
type Execution struct {
	persistence persistence.Persistence
}

// NewExecution creates a new execution service.
func NewExecution(persistence persistence.Persistence) *Execution {
	return &Execution{
		persistence: persistence,
	}
}

// FetchByID retrieves one full execution record.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, id)
}

// ListExecutionsRequest narrows and pages a workflow's execution history.
type ListExecutionsRequest struct {
	Status string
	Limit  int
	Offset int
}

// ListByWorkflow returns a workflow's executions, newest first. The workflow
// must exist; the limit defaults to 50 and is capped at 100.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string, req ListExecutionsRequest) ([]*models.ExecutionRecord, error) {
	if req.Status != "" && !models.ExecutionStatus(req.Status).Valid() {
		return nil, fmt.Errorf("status %q: %w", req.Status, ErrInvalidExecutionStatus)
	}

	if req.Limit <= 0 {
		req.Limit = defaultExecutionListLimit
	}

	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	_, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	records, err := s.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID, persistence.ListOptions{
		Status: req.Status,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return records, nil
}

// CountByWorkflow counts a workflow's executions, optionally by status.
func (s *Execution) CountByWorkflow(ctx context.Context, workflowID, status string) (int64, error) {
	if status != "" && !models.ExecutionStatus(status).Valid() {
		return 0, fmt.Errorf("status %q: %w", status, ErrInvalidExecutionStatus)
	}

	_, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return 0, err
	}

	count, err := s.persistence.ExecutionRepository().CountByWorkflow(ctx, workflowID, models.ExecutionStatus(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}

	return count, nil
}

// PurgeRequest selects terminal execution records older than Days for
// removal, optionally narrowed to one terminal status. DryRun only counts.
type PurgeRequest struct {
	Days   int
	Status string
	DryRun bool
}

// Purge removes (or, on dry run, counts) old terminal execution records and
// returns how many were affected. Running records are never touched.
func (s *Execution) Purge(ctx context.Context, req PurgeRequest) (int64, error) {
	if req.Days < 1 {
		return 0, fmt.Errorf("%d days: %w", req.Days, ErrInvalidRetentionWindow)
	}

	status := models.ExecutionStatus(req.Status)
	if req.Status != "" && !status.Terminal() {
		return 0, fmt.Errorf("status %q: %w", req.Status, ErrNonTerminalPurgeStatus)
	}

	before := time.Now().UTC().AddDate(0, 0, -req.Days)

	if req.DryRun {
		count, err := s.persistence.ExecutionRepository().CountOlderThan(ctx, before, status)
		if err != nil {
			return 0, fmt.Errorf("failed to count purgeable executions: %w", err)
		}

		return count, nil
	}

	deleted, err := s.persistence.ExecutionRepository().DeleteOlderThan(ctx, before, status)
	if err != nil {
		return 0, fmt.Errorf("failed to purge executions: %w", err)
	}

	return deleted, nil
}
