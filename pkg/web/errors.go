package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/plan"
	"github.com/hookflow/hookflow/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func unprocessable(c fiber.Ctx, problemType string, issues []string) error {
	problem := problems.NewStatusProblem(422).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(strings.Join(issues, "; "))

	return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service layer errors onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		definition *plan.ValidationError
		schema     *services.SchemaViolationError
	)

	switch {
	case errors.As(err, &definition):
		return unprocessable(c, "invalid_workflow_definition", definition.ValidationIssues())

	case errors.As(err, &schema):
		return unprocessable(c, "payload_schema_violation", schema.Violations)

	case services.IsBadRequest(err):
		return badRequest(c, err.Error())

	case errors.Is(err, flowerr.ErrWorkflowInactive):
		return conflict(c, "workflow_inactive", err.Error())

	case errors.Is(err, flowerr.ErrWebhookPathTaken):
		return conflict(c, "webhook_path_taken", err.Error())

	case flowerr.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
