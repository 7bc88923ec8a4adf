package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/queue"
	"github.com/hookflow/hookflow/pkg/services"
)

// APIHandlers binds the HTTP surface to the service layer. Handlers parse
// and validate transport input, delegate, and map errors to problems.
type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	triggerService   *services.Trigger
	jobQueue         queue.JobQueue
	validator        *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	triggerService *services.Trigger,
	jobQueue queue.JobQueue,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		triggerService:   triggerService,
		jobQueue:         jobQueue,
		validator:        validator,
	}
}

// HandleWebhook accepts a delivery on POST /webhook/<path> and answers 202
// once the execution record is durable and the job is queued.
func (h *APIHandlers) HandleWebhook(c fiber.Ctx) error {
	headers := make(map[string]string)
	for name, values := range c.GetReqHeaders() {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	accepted, err := h.triggerService.HandleWebhook(c.Context(), services.WebhookRequest{
		Path:    "/" + c.Params("*"),
		Method:  c.Method(),
		URL:     c.BaseURL() + c.OriginalURL(),
		Headers: headers,
		Body:    c.Body(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": accepted.ExecutionID,
		"workflow_id":  accepted.WorkflowID,
		"status":       "accepted",
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req.ToWorkflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	workflows, err := h.workflowService.List(c.Context(), services.ListWorkflowsRequest{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

// PutWorkflow replaces the whole definition; partial node edits are not a
// thing, clients send the full workflow back.
func (h *APIHandlers) PutWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), id, req.ToWorkflow())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) PatchWorkflowStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.SetStatus(c.Context(), id, models.WorkflowStatus(req.Status))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	err := h.workflowService.Delete(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	record, err := h.executionService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

// ListWorkflowExecutions returns summaries; payload and result bodies only
// travel on GET /executions/:id.
func (h *APIHandlers) ListWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit, offset, err := pagination(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	records, err := h.executionService.ListByWorkflow(c.Context(), id, services.ListExecutionsRequest{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	summaries := make([]ExecutionSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, TransformExecutionSummary(record))
	}

	return c.JSON(fiber.Map{
		"executions": summaries,
		"count":      len(summaries),
	})
}

func (h *APIHandlers) CountWorkflowExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	count, err := h.executionService.CountByWorkflow(c.Context(), id, c.Query("status"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"count": count})
}

// PurgeExecutions removes old terminal records. before_days is required,
// dry_run reports the count without deleting.
func (h *APIHandlers) PurgeExecutions(c fiber.Ctx) error {
	days, err := queryInt(c, "before_days")
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	dryRun := false

	if raw := c.Query("dry_run"); raw != "" {
		dryRun, err = strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "Invalid query parameters: dry_run must be a boolean")
		}
	}

	deleted, err := h.executionService.Purge(c.Context(), services.PurgeRequest{
		Days:   days,
		Status: c.Query("status"),
		DryRun: dryRun,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"deleted": deleted,
		"dry_run": dryRun,
	})
}

func (h *APIHandlers) GetQueueInfo(c fiber.Ctx) error {
	info, err := h.jobQueue.Info(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(info)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	queueCheck := "Queue is reachable"
	queueOk := true

	if _, err := h.jobQueue.Info(c.Context()); err != nil {
		queueCheck = "Queue is unreachable: " + err.Error()
		queueOk = false
	}

	status := "unhealthy"
	message := "HookFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk && queueOk {
		status = "healthy"
		message = "HookFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"queue":      queueCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// pagination parses the shared limit/offset query parameters.
func pagination(c fiber.Ctx) (int, int, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}

	offset, err := queryInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}

	return limit, offset, nil
}

func queryInt(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}

	return value, nil
}
