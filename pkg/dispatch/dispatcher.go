// Package dispatch turns an accepted webhook delivery into a durable
// execution record plus a queued job. The record is created first so every
// accepted delivery is observable even if the queue is down.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/queue"
)

type Dispatcher struct {
	executions persistence.ExecutionRepository
	jobs       queue.JobQueue
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewDispatcher(executions persistence.ExecutionRepository, jobs queue.JobQueue, logger *slog.Logger, tracer trace.Tracer) *Dispatcher {
	return &Dispatcher{
		executions: executions,
		jobs:       jobs,
		logger:     logger.With("module", "dispatch"),
		tracer:     tracer,
	}
}

// Dispatch creates a running execution record and enqueues the job that
// will drive it, returning the execution id. When the record cannot be
// created nothing is enqueued; when enqueueing fails the record is
// finalized failed so no running record is left orphaned.
func (d *Dispatcher) Dispatch(ctx context.Context, workflowID string, plan *models.ExecutionPlan, payload map[string]any) (string, error) {
	record := models.NewExecutionRecord("", workflowID, payload)

	err := d.executions.Create(ctx, record)
	if err != nil {
		return "", fmt.Errorf("failed to create execution record: %w", err)
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "dispatch.enqueue",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.ExecutionIDKey, record.ID),
	)
	defer span.End()

	job := &queue.Job{
		ID:          d.jobs.GenerateID(),
		ExecutionID: record.ID,
		WorkflowID:  workflowID,
		Plan:        plan,
		Payload:     payload,
		EnqueuedAt:  time.Now().UTC(),
	}

	err = d.jobs.Enqueue(ctx, job)
	if err != nil {
		otelhelper.SetError(span, err)
		d.finalizeFailed(ctx, record.ID, err)

		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	d.logger.InfoContext(ctx, "Execution dispatched",
		"workflow_id", workflowID, "execution_id", record.ID, "job_id", job.ID)

	return record.ID, nil
}

func (d *Dispatcher) finalizeFailed(ctx context.Context, executionID string, cause error) {
	message := "enqueue failed: " + cause.Error()

	err := d.executions.Finalize(ctx, executionID, models.ExecutionStatusFailed, nil, message, time.Now().UTC())
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to finalize execution after enqueue failure",
			"execution_id", executionID, "error", err)
	}
}
