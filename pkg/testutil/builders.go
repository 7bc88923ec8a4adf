// Package testutil provides test data builders shared across packages.
package testutil

import (
	"github.com/google/uuid"

	"github.com/hookflow/hookflow/pkg/models"
)

// CreateTestNode creates a webhook trigger node with default values that
// can be overridden.
func CreateTestNode(overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:   uuid.New().String(),
		Kind: models.NodeKindTrigger,
		Name: "Test Node",
		Config: map[string]any{
			"path": "/test",
		},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithID sets the node id.
func WithID(id string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.ID = id
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithTriggerNode configures the node as a webhook trigger on the given
// path.
func WithTriggerNode(path string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Kind = models.NodeKindTrigger
		n.Config = map[string]any{
			"path": path,
		}
	}
}

// WithHTTPActionNode configures the node as a POST action against the
// given URL.
func WithHTTPActionNode(url string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Kind = models.NodeKindHTTPAction
		n.Config = map[string]any{
			"url":    url,
			"method": "POST",
		}
	}
}

// WithFilterNode configures the node as a filter with one string equality
// condition.
func WithFilterNode(field, value string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Kind = models.NodeKindFilter
		n.Config = map[string]any{
			"conditions": []any{
				map[string]any{
					"field":    field,
					"operator": "equals",
					"value":    value,
					"type":     "string",
				},
			},
		}
	}
}

// CreateTestWorkflow creates a valid active workflow with a trigger and an
// HTTP action, with overrides applied on top. The result passes the plan
// builder unchanged.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:     uuid.New().String(),
		Name:   "Test Workflow",
		Status: models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			CreateTestNode(WithID("hook"), WithTriggerNode("/test")),
			CreateTestNode(WithID("notify"), WithHTTPActionNode("https://example.com/notify")),
		},
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithWorkflowStatus sets the workflow status.
func WithWorkflowStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithWorkflowNodes replaces the workflow's nodes.
func WithWorkflowNodes(nodes ...*models.WorkflowNode) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Nodes = nodes
	}
}
