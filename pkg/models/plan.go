package models

// ExecutionPlan is a validated, ordered node chain ready for execution.
// Node order is the stored definition's order; the builder never reorders.
// Plans marshal cleanly to JSON so they can travel inside queued jobs.
type ExecutionPlan struct {
	WorkflowID string      `json:"workflow_id"`
	Nodes      []*PlanNode `json:"nodes"`
}

// PlanNode is one validated step. Exactly one of the config variants is
// non-nil, matching Kind.
type PlanNode struct {
	ID      string         `json:"id"`
	Kind    NodeKind       `json:"kind"`
	Name    string         `json:"name,omitempty"`
	Trigger *TriggerConfig `json:"trigger,omitempty"`
	HTTP    *HTTPConfig    `json:"http,omitempty"`
	Filter  *FilterConfig  `json:"filter,omitempty"`
}

// TriggerNode returns the plan's trigger, always position 0 on a plan
// produced by the builder.
func (p *ExecutionPlan) TriggerNode() *PlanNode {
	if len(p.Nodes) == 0 {
		return nil
	}

	return p.Nodes[0]
}

// NodeOrder returns the node ids in execution order.
func (p *ExecutionPlan) NodeOrder() []string {
	order := make([]string, 0, len(p.Nodes))
	for _, node := range p.Nodes {
		order = append(order, node.ID)
	}

	return order
}
