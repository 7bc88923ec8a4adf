// Package services holds the business logic behind the HTTP handlers:
// workflow management, webhook intake, and execution queries. Handlers stay
// thin; every rule that is not pure transport lives here.
package services

import (
	"errors"
	"fmt"
	"strings"
)

// Client request problems (4xx responses).
var (
	ErrInvalidPayload         = errors.New("request body is not a JSON object")
	ErrInvalidStatus          = errors.New("invalid workflow status")
	ErrInvalidExecutionStatus = errors.New("invalid execution status")
	ErrInvalidRetentionWindow = errors.New("retention window must be at least one day")
	ErrNonTerminalPurgeStatus = errors.New("only terminal executions can be purged")
)

// SchemaViolationError reports a webhook payload rejected by the trigger
// node's payload schema. Violations carries one line per schema problem.
type SchemaViolationError struct {
	Violations []string
}

func (e *SchemaViolationError) Error() string {
	return "payload schema violated: " + strings.Join(e.Violations, "; ")
}

// IsSchemaViolation checks whether the error carries schema violations.
func IsSchemaViolation(err error) bool {
	var sv *SchemaViolationError

	return errors.As(err, &sv)
}

// IsBadRequest checks whether the error describes a client mistake that
// should map to HTTP 400.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidExecutionStatus) ||
		errors.Is(err, ErrInvalidRetentionWindow) ||
		errors.Is(err, ErrNonTerminalPurgeStatus)
}

func invalidStatus(status string) error {
	return fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
}
