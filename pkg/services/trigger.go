package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/persistence"
	"github.com/hookflow/hookflow/pkg/plan"
)

// Dispatcher creates the execution record and enqueues the job; implemented
// by pkg/dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, workflowID string, plan *models.ExecutionPlan, payload map[string]any) (string, error)
}

// WebhookRequest is one inbound webhook delivery: the matched path, the raw
// body, and the transport metadata the trigger fragment is enriched with.
type WebhookRequest struct {
	Path    string
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// WebhookAccepted acknowledges a dispatched delivery.
type WebhookAccepted struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

// Trigger matches webhook deliveries to workflows and hands them to the
// dispatcher. This is the synchronous ingress path: everything here must
// stay fast, the nodes run later on a worker.
type Trigger struct {
	workflows  persistence.WorkflowRepository
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewTrigger creates a new trigger service.
func NewTrigger(workflows persistence.WorkflowRepository, dispatcher Dispatcher, logger *slog.Logger) *Trigger {
	return &Trigger{
		workflows:  workflows,
		dispatcher: dispatcher,
		logger:     logger.With("module", "trigger"),
	}
}

// HandleWebhook resolves the delivery's path to an active workflow,
// validates the payload against the trigger's schema when one is
// configured, and dispatches an execution. The returned errors map to the
// ingress responses: flowerr.ErrWebhookNotFound (404),
// flowerr.ErrWorkflowInactive (409), ErrInvalidPayload (400),
// *SchemaViolationError (422).
func (s *Trigger) HandleWebhook(ctx context.Context, req WebhookRequest) (*WebhookAccepted, error) {
	workflow, err := s.workflows.GetByWebhookPath(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	if !workflow.IsActive() {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, flowerr.ErrWorkflowInactive)
	}

	body, err := decodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	// Stored definitions are validated at save time, so this build is a
	// consistency re-check and decodes the trigger config we need next.
	built, err := plan.Build(workflow)
	if err != nil {
		return nil, fmt.Errorf("stored workflow %s no longer builds: %w", workflow.ID, err)
	}

	trigger := built.TriggerNode()
	if trigger.Trigger.PayloadSchema != nil {
		err = validatePayloadSchema(body, trigger.Trigger.PayloadSchema)
		if err != nil {
			return nil, err
		}
	}

	executionID, err := s.dispatcher.Dispatch(ctx, workflow.ID, built, enrichPayload(body, req))
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Webhook dispatched",
		"path", req.Path, "workflow_id", workflow.ID, "execution_id", executionID)

	return &WebhookAccepted{ExecutionID: executionID, WorkflowID: workflow.ID}, nil
}

// decodeBody parses the delivery body. An empty body is an empty object; a
// body that is not a JSON object is rejected.
func decodeBody(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var body map[string]any

	err := json.Unmarshal(raw, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return body, nil
}

// enrichPayload builds the trigger fragment: the decoded body stays under
// "body" so the delivery metadata keys can never collide with payload
// fields. Header values map to map[string]any so template paths can walk
// them.
func enrichPayload(body map[string]any, req WebhookRequest) map[string]any {
	headers := make(map[string]any, len(req.Headers))
	for name, value := range req.Headers {
		headers[name] = value
	}

	return map[string]any{
		"body":        body,
		"method":      req.Method,
		"url":         req.URL,
		"headers":     headers,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
}

func validatePayloadSchema(body map[string]any, schema map[string]any) error {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(body))
	if err != nil {
		return fmt.Errorf("failed to validate payload schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return &SchemaViolationError{Violations: violations}
}
