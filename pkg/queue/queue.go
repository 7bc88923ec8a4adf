// Package queue defines the asynchronous job contract between webhook intake
// and the workers that run execution plans.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hookflow/hookflow/pkg/models"
)

// Topic is the queue name shared by all providers.
const Topic = "hookflow.executions"

// ErrNoHandler is reported by Subscribe when no handler was registered.
var ErrNoHandler = errors.New("no job handler registered")

// Job carries everything a worker needs to run one execution: the compiled
// plan travels with the job so workers never load workflow definitions.
type Job struct {
	ID          string                `json:"id"`
	ExecutionID string                `json:"execution_id"`
	WorkflowID  string                `json:"workflow_id"`
	Plan        *models.ExecutionPlan `json:"plan"`
	Payload     map[string]any        `json:"payload"`
	EnqueuedAt  time.Time             `json:"enqueued_at"`
}

// JobHandler processes a single job. A non-nil error requeues the job;
// delivery is at-least-once, so handlers must tolerate duplicates.
type JobHandler func(ctx context.Context, job *Job) error

// QueueInfo describes a queue for diagnostics. Depth is -1 when the
// provider cannot report it.
type QueueInfo struct {
	Provider string `json:"provider"`
	Depth    int64  `json:"depth"`
}

type JobPublisher interface {
	Enqueue(ctx context.Context, job *Job) error
}

type JobSubscriber interface {
	Handle(handler JobHandler) error
	Subscribe(ctx context.Context) error
}

type JobQueue interface {
	JobPublisher
	JobSubscriber
	Info(ctx context.Context) (QueueInfo, error)
	Close() error
	GenerateID() string
}
