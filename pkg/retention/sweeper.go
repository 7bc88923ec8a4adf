// Package retention prunes old terminal execution records on a cron
// schedule. The sweeper is the scheduled counterpart of the DELETE
// /executions admin endpoint and shares its repository contract: running
// records are never touched.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
)

const (
	// DefaultDays is the retention window applied when none is configured.
	DefaultDays = 30
	// DefaultSchedule runs the sweep daily at 03:00.
	DefaultSchedule = "0 3 * * *"
)

// Config tunes one sweeper. Zero values fall back to the defaults above;
// an empty Status means every terminal status is eligible.
type Config struct {
	Schedule string
	Days     int
	Status   models.ExecutionStatus
	DryRun   bool
}

// Sweeper deletes execution records older than the retention window. One
// sweeper runs inside each worker process; overlapping runs are skipped by
// the cron chain, so multiple workers only cost redundant deletes.
type Sweeper struct {
	executions persistence.ExecutionRepository
	logger     *slog.Logger
	schedule   string
	days       int
	status     models.ExecutionStatus
	dryRun     bool
	cron       *cron.Cron
}

func NewSweeper(executions persistence.ExecutionRepository, logger *slog.Logger, cfg Config) (*Sweeper, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	days := cfg.Days
	if days == 0 {
		days = DefaultDays
	}

	if days < 1 {
		return nil, fmt.Errorf("retention window must be at least one day, got %d", days)
	}

	if cfg.Status != "" && !cfg.Status.Terminal() {
		return nil, fmt.Errorf("retention status must be terminal, got %q", cfg.Status)
	}

	return &Sweeper{
		executions: executions,
		logger: logger.With(
			"module", "retention",
			"schedule", schedule,
			"days", days,
		),
		schedule: schedule,
		days:     days,
		status:   cfg.Status,
		dryRun:   cfg.DryRun,
	}, nil
}

// Start schedules the sweep. The given context is used for every scheduled
// run; cancel it before calling Stop.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Retention sweeper started", "dry_run", s.dryRun)

	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}

	<-s.cron.Stop().Done()
	s.logger.Info("Retention sweeper stopped")
}

// Sweep removes (or, in dry-run mode, counts) the records older than the
// retention window and reports how many were affected.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	before := time.Now().UTC().AddDate(0, 0, -s.days)

	if s.dryRun {
		count, err := s.executions.CountOlderThan(ctx, before, s.status)
		if err != nil {
			return 0, fmt.Errorf("failed to count prunable executions: %w", err)
		}

		s.logger.InfoContext(ctx, "Retention dry run, keeping records",
			"would_delete", count, "before", before, "status", s.status)

		return count, nil
	}

	deleted, err := s.executions.DeleteOlderThan(ctx, before, s.status)
	if err != nil {
		return 0, fmt.Errorf("failed to prune executions: %w", err)
	}

	s.logger.InfoContext(ctx, "Pruned execution records",
		"deleted", deleted, "before", before, "status", s.status)

	return deleted, nil
}
