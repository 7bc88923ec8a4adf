// Package main provides the HookFlow worker: it consumes queued execution
// jobs, runs their plans and optionally prunes old execution records on a
// schedule.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/plan"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/retention"
	"github.com/hookflow/hookflow/pkg/runner"
)

type Manager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	jobQueue    queue.JobQueue
	tracer      trace.Tracer
	sweeper     *retention.Sweeper
}

// NewManager wires one worker process. A nil sweeper disables retention.
func NewManager(
	id string,
	persistence persistence.Persistence,
	jobQueue queue.JobQueue,
	logger *slog.Logger,
	tracer trace.Tracer,
	sweeper *retention.Sweeper,
) *Manager {
	return &Manager{
		id:          id,
		logger:      logger.With("module", "hookflow-worker", "worker_id", id),
		persistence: persistence,
		jobQueue:    jobQueue,
		tracer:      tracer,
		sweeper:     sweeper,
	}
}

// Start consumes jobs until SIGINT or SIGTERM.
func (m *Manager) Start(ctx context.Context) error {
	err := m.bootstrap(ctx)
	if err != nil {
		return err
	}

	if m.sweeper != nil {
		defer m.sweeper.Stop()
	}

	m.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// bootstrap registers the job handler, subscribes to the queue and starts
// the retention sweeper.
func (m *Manager) bootstrap(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting worker manager")

	jobRunner := runner.NewRunner(
		m.persistence.ExecutionRepository(),
		plan.Executors(m.logger),
		m.logger,
		m.tracer,
		m.id,
	)

	err := m.jobQueue.Handle(jobRunner.Run)
	if err != nil {
		return err
	}

	err = m.jobQueue.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to job queue", "error", err)

		return err
	}

	if m.sweeper != nil {
		err = m.sweeper.Start(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}
