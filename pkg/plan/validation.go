package plan

import (
	"fmt"
	"strings"
)

// Issue is one problem found while validating a workflow definition. An
// empty NodeID marks a workflow-level problem.
type Issue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	parts := make([]string, 0, 3)
	if i.NodeID != "" {
		parts = append(parts, "node "+i.NodeID)
	}

	if i.Field != "" {
		parts = append(parts, i.Field)
	}

	parts = append(parts, i.Message)

	return strings.Join(parts, ": ")
}

// ValidationError aggregates every problem found in one validation pass,
// never just the first. It blocks dispatch entirely; no execution record
// exists for a definition that fails to build.
type ValidationError struct {
	WorkflowID string  `json:"workflow_id,omitempty"`
	Issues     []Issue `json:"issues"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow definition (%d problems): %s",
		len(e.Issues), strings.Join(e.ValidationIssues(), "; "))
}

// ValidationIssues renders each issue as one line. It also satisfies the
// structural interface flowerr.IsValidation matches on.
func (e *ValidationError) ValidationIssues() []string {
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.String())
	}

	return out
}

// collector accumulates issues across the whole validation pass.
type collector struct {
	issues []Issue
}

func (c *collector) add(nodeID, field, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		NodeID:  nodeID,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}
