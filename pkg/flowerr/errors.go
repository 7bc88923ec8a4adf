// Package flowerr defines the shared error taxonomy of the execution
// engine. Validation problems are aggregated by the plan builder and kept
// there; this package carries the run-time and lookup families every other
// layer branches on.
package flowerr

import (
	"errors"
	"fmt"
)

// Not-found family, returned by persistence and the ingress lookup.
var (
	// ErrWorkflowNotFound indicates no workflow exists with the given id.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates no execution record exists with the
	// given id, or the record is already terminal when a finalize was
	// attempted.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrWebhookNotFound indicates no workflow claims the webhook path.
	ErrWebhookNotFound = errors.New("no workflow registered for webhook path")

	// ErrWorkflowInactive indicates the matched workflow does not accept
	// triggers.
	ErrWorkflowInactive = errors.New("workflow is not active")

	// ErrWebhookPathTaken indicates another workflow already listens on
	// the webhook path.
	ErrWebhookPathTaken = errors.New("webhook path already in use")
)

// ConfigurationError marks node or condition config that is semantically
// wrong in a way static validation could not catch, such as a runtime
// numeric coercion failure. It fails the run, never the worker.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// NewConfigurationError builds a ConfigurationError with a formatted
// message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// IsConfiguration checks if an error is a configuration error.
func IsConfiguration(err error) bool {
	var target *ConfigurationError

	return errors.As(err, &target)
}

// TransportError marks an outbound HTTP call that could not complete at
// all: DNS failure, connection refused, timeout. A received response,
// whatever its status code, is never a TransportError.
type TransportError struct {
	Op  string // What was being attempted, e.g. "POST https://..."
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a transport-level failure with the attempted
// operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// IsTransport checks if an error is a transport error.
func IsTransport(err error) bool {
	var target *TransportError

	return errors.As(err, &target)
}

// IsNotFound checks if an error belongs to the not-found family.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrWebhookNotFound)
}

// IsValidation checks if an error aggregates definition validation issues.
// The match is structural so this package never imports the plan package
// that owns the concrete type.
func IsValidation(err error) bool {
	var target interface {
		error
		ValidationIssues() []string
	}

	return errors.As(err, &target)
}
