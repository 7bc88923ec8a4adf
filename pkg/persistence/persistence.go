// Package persistence defines the storage contracts for workflows and
// execution records. Implementations live in the postgresql and file
// subpackages; callers select one by database URL scheme.
package persistence

import (
	"context"
	"time"

	"github.com/hookflow/hookflow/pkg/models"
)

// ListOptions narrows and pages list queries. A zero Limit means no limit;
// an empty Status means no status filter.
type ListOptions struct {
	Status string
	Limit  int
	Offset int
}

// Persistence bundles the repositories one storage backend provides.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Lookups return
// flowerr.ErrWorkflowNotFound (ErrWebhookNotFound for path lookups) when
// nothing matches; Create and Update return flowerr.ErrWebhookPathTaken
// when another workflow already claims the webhook path.
type WorkflowRepository interface {
	Create(ctx context.Context, workflow *models.Workflow) error
	Update(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// GetByWebhookPath matches by path regardless of workflow status; the
	// caller decides how to treat inactive workflows.
	GetByWebhookPath(ctx context.Context, path string) (*models.Workflow, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution records. Finalize transitions a
// record out of running exactly once: it returns
// flowerr.ErrExecutionNotFound when the record is absent or already
// terminal, which is what makes redelivered jobs harmless.
type ExecutionRepository interface {
	Create(ctx context.Context, record *models.ExecutionRecord) error
	GetByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	Finalize(ctx context.Context, id string, status models.ExecutionStatus, result map[string]any, errorMessage string, completedAt time.Time) error
	ListByWorkflow(ctx context.Context, workflowID string, opts ListOptions) ([]*models.ExecutionRecord, error)
	CountByWorkflow(ctx context.Context, workflowID string, status models.ExecutionStatus) (int64, error)
	// DeleteOlderThan removes terminal records started before the given
	// time, optionally narrowed to one status. Running records are never
	// deleted. Returns the number of removed records.
	DeleteOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error)
	// CountOlderThan reports how many records DeleteOlderThan would remove.
	CountOlderThan(ctx context.Context, before time.Time, status models.ExecutionStatus) (int64, error)
}
