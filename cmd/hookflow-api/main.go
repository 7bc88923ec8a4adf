package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/hookflow/hookflow/pkg/cmd"
	"github.com/hookflow/hookflow/pkg/log"
	"github.com/hookflow/hookflow/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "hookflow-api",
		Usage:                 "Manage workflows and receive webhook deliveries",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing HookFlow API")

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

			jobs, err := cmd.NewJobQueue(ctx, command.String("queue-provider"), logger, "hookflow-api")
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
				tracer, err = otelhelper.NewTracer(ctx, "hookflow-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
			}

			api := NewAPI(logger, store, jobs, tracer)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
