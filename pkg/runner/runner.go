// Package runner drives queued jobs to completion on a worker: it walks
// the job's plan node by node, folding each output fragment into the
// execution context, and finalizes the execution record with the outcome.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/nodes"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/queue"
)

type Runner struct {
	executions persistence.ExecutionRepository
	executors  map[models.NodeKind]nodes.Executor
	logger     *slog.Logger
	tracer     trace.Tracer
	workerID   string
}

func NewRunner(executions persistence.ExecutionRepository, executors map[models.NodeKind]nodes.Executor, logger *slog.Logger, tracer trace.Tracer, workerID string) *Runner {
	return &Runner{
		executions: executions,
		executors:  executors,
		logger:     logger.With("module", "runner", "worker_id", workerID),
		tracer:     tracer,
		workerID:   workerID,
	}
}

// Run processes one queued job end to end and reports the terminal status
// to the execution record. It returns an error only when the job should be
// redelivered: a failed run is a durable outcome, not a delivery failure,
// so node errors finalize the record as failed and return nil.
//
// Delivery is at-least-once. A job whose record is already terminal is a
// redelivery and is acknowledged without re-running anything; a job whose
// record does not exist is dropped.
func (r *Runner) Run(ctx context.Context, job *queue.Job) error {
	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runner.run",
		attribute.String(otelhelper.JobIDKey, job.ID),
		attribute.String(otelhelper.ExecutionIDKey, job.ExecutionID),
		attribute.String(otelhelper.WorkflowIDKey, job.WorkflowID),
		attribute.String(otelhelper.WorkerIDKey, r.workerID),
	)
	defer span.End()

	record, err := r.executions.GetByID(ctx, job.ExecutionID)
	if err != nil {
		if errors.Is(err, flowerr.ErrExecutionNotFound) {
			r.logger.WarnContext(ctx, "Dropping job for unknown execution",
				"job_id", job.ID, "execution_id", job.ExecutionID)

			return nil
		}

		return fmt.Errorf("failed to load execution %s: %w", job.ExecutionID, err)
	}

	if record.Status.Terminal() {
		r.logger.InfoContext(ctx, "Skipping redelivered job, execution already finalized",
			"job_id", job.ID, "execution_id", job.ExecutionID, "status", record.Status)

		return nil
	}

	result, err := r.walk(ctx, job)
	if err != nil {
		otelhelper.SetError(span, err)
		r.logger.ErrorContext(ctx, "Execution failed",
			"execution_id", job.ExecutionID, "workflow_id", job.WorkflowID, "error", err)

		return r.finalize(ctx, job.ExecutionID, models.ExecutionStatusFailed, nil, err.Error())
	}

	r.logger.InfoContext(ctx, "Execution succeeded",
		"execution_id", job.ExecutionID, "workflow_id", job.WorkflowID)

	return r.finalize(ctx, job.ExecutionID, models.ExecutionStatusSuccess, result, "")
}

// walk seeds the context with the trigger fragment and executes the rest
// of the chain in order. A halt decision ends the walk successfully with
// the context accumulated so far; the halting node folds nothing.
// Executor panics are recovered into errors so a bad node fails one
// execution instead of the worker.
func (r *Runner) walk(ctx context.Context, job *queue.Job) (result map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("node execution panicked: %v", rec)
		}
	}()

	plan := job.Plan
	if plan == nil || len(plan.Nodes) == 0 {
		return nil, errors.New("job carries no execution plan")
	}

	trigger := plan.TriggerNode()
	if trigger.Kind != models.NodeKindTrigger {
		return nil, fmt.Errorf("plan node 0 has kind %q, expected trigger", trigger.Kind)
	}

	ec := models.ExecutionContext{}
	ec.Fold(trigger.ID, job.Payload)

	for _, node := range plan.Nodes[1:] {
		outcome, err := r.runNode(ctx, node, ec)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", node.ID, err)
		}

		if outcome.Decision == models.DecisionHalt {
			r.logger.InfoContext(ctx, "Chain halted",
				"execution_id", job.ExecutionID, "node_id", node.ID)

			return ec.Snapshot(), nil
		}

		ec.Fold(node.ID, outcome.Fragment)
	}

	return ec.Snapshot(), nil
}

func (r *Runner) runNode(ctx context.Context, node *models.PlanNode, ec models.ExecutionContext) (*models.Outcome, error) {
	executor, ok := r.executors[node.Kind]
	if !ok {
		return nil, fmt.Errorf("no executor for node kind %q", node.Kind)
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, "runner.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
	)
	defer span.End()

	outcome, err := executor.Execute(ctx, node, ec)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return outcome, nil
}

// finalize records the terminal status. Losing the finalize race to a
// concurrent delivery of the same execution is not an error: the record
// already holds a terminal outcome.
func (r *Runner) finalize(ctx context.Context, executionID string, status models.ExecutionStatus, result map[string]any, errorMessage string) error {
	err := r.executions.Finalize(ctx, executionID, status, result, errorMessage, time.Now().UTC())
	if err != nil {
		if errors.Is(err, flowerr.ErrExecutionNotFound) {
			r.logger.WarnContext(ctx, "Execution finalized elsewhere, keeping recorded outcome",
				"execution_id", executionID)

			return nil
		}

		return fmt.Errorf("failed to finalize execution %s: %w", executionID, err)
	}

	return nil
}
