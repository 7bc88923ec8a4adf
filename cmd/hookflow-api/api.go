// Package main provides the HookFlow API server: workflow management,
// webhook intake and execution reads.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/hookflow/hookflow/pkg/dispatch"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/services"
	"github.com/hookflow/hookflow/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	jobQueue    queue.JobQueue
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	jobQueue queue.JobQueue,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		jobQueue:    jobQueue,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	dispatcher := dispatch.NewDispatcher(a.persistence.ExecutionRepository(), a.jobQueue, a.logger, a.tracer)

	workflowService := services.NewWorkflow(a.persistence)
	executionService := services.NewExecution(a.persistence)
	triggerService := services.NewTrigger(a.persistence.WorkflowRepository(), dispatcher, a.logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, triggerService, a.jobQueue, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.persistence.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("HookFlow API")
	})

	app.Post("/webhook/*", handlers.HandleWebhook)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.PutWorkflow)
	w.Patch("/:id/status", handlers.PatchWorkflowStatus)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/executions", handlers.ListWorkflowExecutions)
	w.Get("/:id/executions/count", handlers.CountWorkflowExecutions)

	e := app.Group("/executions")
	e.Get("/:id", handlers.GetExecution)
	e.Delete("/", handlers.PurgeExecutions)

	app.Get("/queue/info", handlers.GetQueueInfo)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
