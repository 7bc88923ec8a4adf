package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/hookflow/hookflow/pkg/cmd"
	"github.com/hookflow/hookflow/pkg/log"
	"github.com/hookflow/hookflow/pkg/otelhelper"
	"github.com/hookflow/hookflow/pkg/retention"
)

func main() {
	command := &cli.Command{
		Name:                  "hookflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to run queued workflow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "queue-provider",
				Usage:   "Job queue provider (gochannel, kafka, redis://...)",
				Sources: cli.EnvVars("QUEUE_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron schedule for pruning old executions (disabled when empty)",
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "retention-days",
				Usage:   "Retention window in days for terminal executions",
				Value:   retention.DefaultDays,
				Sources: cli.EnvVars("RETENTION_DAYS"),
			},
			&cli.BoolFlag{
				Name:    "retention-dry-run",
				Usage:   "Log what the retention sweep would delete instead of deleting",
				Sources: cli.EnvVars("RETENTION_DRY_RUN"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("HOOKFLOW_TRACING"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("hookflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing HookFlow Worker")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to initialize persistence: %w", err)
			}

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			jobs, err := cmd.NewJobQueue(ctx, command.String("queue-provider"), logger, "hookflow-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize job queue: %w", err)
			}

			defer func() {
				err := jobs.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close job queue", "error", err)
				}
			}()

			tracer := otelhelper.NewNoopTracer()
			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "hookflow-worker")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
			}

			var sweeper *retention.Sweeper
			if schedule := command.String("retention-schedule"); schedule != "" {
				sweeper, err = retention.NewSweeper(store.ExecutionRepository(), logger, retention.Config{
					Schedule: schedule,
					Days:     command.Int("retention-days"),
					DryRun:   command.Bool("retention-dry-run"),
				})
				if err != nil {
					return fmt.Errorf("failed to configure retention: %w", err)
				}
			}

			worker := NewManager(workerID, store, jobs, logger, tracer, sweeper)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
