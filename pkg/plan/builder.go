// Package plan turns stored workflow definitions into validated execution
// plans. Build runs every check in one pass and reports all problems
// together; a definition that builds cleanly only fails at run time for
// genuinely dynamic reasons. The package also owns the closed mapping from
// node kinds to executor instances.
package plan

import (
	"encoding/json"
	"net/url"
	"slices"
	"strings"

	"github.com/hookflow/hookflow/pkg/conditions"
	"github.com/hookflow/hookflow/pkg/models"
)

// Build validates a workflow definition and decodes each node's untyped
// config into its typed variant. On failure the returned error is a
// *ValidationError carrying every problem found.
func Build(wf *models.Workflow) (*models.ExecutionPlan, error) {
	c := &collector{}

	if wf == nil {
		c.add("", "", "workflow is required")

		return nil, &ValidationError{Issues: c.issues}
	}

	if len(wf.Nodes) == 0 {
		c.add("", "nodes", "workflow needs at least one node")

		return nil, &ValidationError{WorkflowID: wf.ID, Issues: c.issues}
	}

	checkStructure(wf, c)

	nodes := make([]*models.PlanNode, 0, len(wf.Nodes))

	for _, node := range wf.Nodes {
		planNode := &models.PlanNode{
			ID:   node.ID,
			Kind: node.Kind,
			Name: node.Name,
		}

		switch node.Kind {
		case models.NodeKindTrigger:
			planNode.Trigger = decodeTrigger(node, c)
		case models.NodeKindHTTPAction:
			planNode.HTTP = decodeHTTP(node, c)
		case models.NodeKindFilter:
			planNode.Filter = decodeFilter(node, c)
		}

		nodes = append(nodes, planNode)
	}

	if len(c.issues) > 0 {
		return nil, &ValidationError{WorkflowID: wf.ID, Issues: c.issues}
	}

	return &models.ExecutionPlan{WorkflowID: wf.ID, Nodes: nodes}, nil
}

// checkStructure validates the node chain as a whole: ids, kinds, and the
// single-trigger-first invariant.
func checkStructure(wf *models.Workflow, c *collector) {
	seen := make(map[string]bool, len(wf.Nodes))

	for i, node := range wf.Nodes {
		if node.ID == "" {
			c.add("", "id", "node at position %d has an empty id", i)
		} else if seen[node.ID] {
			c.add(node.ID, "id", "duplicate node id")
		} else {
			seen[node.ID] = true
		}

		if !node.Kind.Valid() {
			c.add(node.ID, "kind", "unknown node kind %q", node.Kind)

			continue
		}

		if i == 0 && node.Kind != models.NodeKindTrigger {
			c.add(node.ID, "kind", "first node must be a trigger, got %q", node.Kind)
		}

		if i > 0 && node.Kind == models.NodeKindTrigger {
			c.add(node.ID, "kind", "only the first node may be a trigger")
		}
	}
}

func decodeTrigger(node *models.WorkflowNode, c *collector) *models.TriggerConfig {
	cfg := &models.TriggerConfig{}

	path, ok := stringValue(node.Config, "path")
	if !ok || path == "" {
		c.add(node.ID, "path", "webhook path is required")
	} else if !strings.HasPrefix(path, "/") {
		c.add(node.ID, "path", "webhook path must start with '/'")
	} else {
		cfg.Path = path
	}

	if raw, exists := node.Config["payload_schema"]; exists && raw != nil {
		schema, ok := raw.(map[string]any)
		if !ok {
			c.add(node.ID, "payload_schema", "payload schema must be a JSON object")
		} else {
			cfg.PayloadSchema = schema
		}
	}

	return cfg
}

func decodeHTTP(node *models.WorkflowNode, c *collector) *models.HTTPConfig {
	cfg := &models.HTTPConfig{
		TimeoutSeconds: models.HTTPTimeoutDefaultSeconds,
	}

	rawURL, ok := stringValue(node.Config, "url")
	if !ok || rawURL == "" {
		c.add(node.ID, "url", "url is required")
	} else if !absoluteURL(rawURL) {
		c.add(node.ID, "url", "url must be absolute with scheme http or https")
	} else {
		cfg.URL = rawURL
	}

	method, ok := stringValue(node.Config, "method")
	if !ok || method == "" {
		c.add(node.ID, "method", "method is required")
	} else {
		upper := strings.ToUpper(method)
		if !slices.Contains(models.AllowedHTTPMethods, upper) {
			c.add(node.ID, "method", "method %q is not one of %s", method, strings.Join(models.AllowedHTTPMethods, ", "))
		} else {
			cfg.Method = upper
		}
	}

	if raw, exists := node.Config["timeout"]; exists && raw != nil {
		seconds, ok := intValue(raw)
		if !ok {
			c.add(node.ID, "timeout", "timeout must be a whole number of seconds")
		} else if seconds < models.HTTPTimeoutMinSeconds || seconds > models.HTTPTimeoutMaxSeconds {
			c.add(node.ID, "timeout", "timeout must be between %d and %d seconds", models.HTTPTimeoutMinSeconds, models.HTTPTimeoutMaxSeconds)
		} else {
			cfg.TimeoutSeconds = seconds
		}
	}

	if raw, exists := node.Config["headers"]; exists && raw != nil {
		headers, ok := stringMap(raw)
		if !ok {
			c.add(node.ID, "headers", "headers must map header names to string values")
		} else {
			cfg.Headers = headers
		}
	}

	if raw, exists := node.Config["body"]; exists && raw != nil {
		body, ok := raw.(string)
		if !ok {
			c.add(node.ID, "body", "body must be a string")
		} else {
			cfg.Body = body
		}
	}

	return cfg
}

func decodeFilter(node *models.WorkflowNode, c *collector) *models.FilterConfig {
	cfg := &models.FilterConfig{
		Logic:      models.FilterLogicAnd,
		ContinueOn: true,
	}

	conds := decodeConditions(node, c)
	if len(conds) == 0 {
		c.add(node.ID, "conditions", "filter needs at least one condition")
	}

	cfg.Conditions = conds

	if raw, exists := node.Config["logic"]; exists && raw != nil {
		logic, ok := raw.(string)
		if !ok {
			c.add(node.ID, "logic", "logic must be a string")
		} else {
			switch models.FilterLogic(strings.ToLower(logic)) {
			case models.FilterLogicAnd:
				cfg.Logic = models.FilterLogicAnd
			case models.FilterLogicOr:
				cfg.Logic = models.FilterLogicOr
			default:
				c.add(node.ID, "logic", "logic must be \"and\" or \"or\", got %q", logic)
			}
		}
	}

	if raw, exists := node.Config["continue_on"]; exists && raw != nil {
		continueOn, ok := raw.(bool)
		if !ok {
			c.add(node.ID, "continue_on", "continue_on must be a boolean")
		} else {
			cfg.ContinueOn = continueOn
		}
	}

	return cfg
}

func decodeConditions(node *models.WorkflowNode, c *collector) []models.FilterCondition {
	raw, exists := node.Config["conditions"]
	if !exists || raw == nil {
		return nil
	}

	items, ok := raw.([]any)
	if !ok {
		c.add(node.ID, "conditions", "conditions must be an array")

		return nil
	}

	conds := make([]models.FilterCondition, 0, len(items))

	for i, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			c.add(node.ID, "conditions", "condition %d must be an object", i)

			continue
		}

		conds = append(conds, decodeCondition(node.ID, i, entry, c))
	}

	return conds
}

func decodeCondition(nodeID string, index int, entry map[string]any, c *collector) models.FilterCondition {
	cond := models.FilterCondition{}

	field, ok := stringValue(entry, "field")
	if !ok || field == "" {
		c.add(nodeID, "conditions", "condition %d: field is required", index)
	} else {
		cond.Field = field
	}

	rawType, ok := stringValue(entry, "type")
	condType := models.ConditionType(rawType)

	if !ok || rawType == "" {
		c.add(nodeID, "conditions", "condition %d: type is required", index)
	} else if !condType.Valid() {
		c.add(nodeID, "conditions", "condition %d: unknown type %q", index, rawType)
	} else {
		cond.Type = condType
	}

	operator, ok := stringValue(entry, "operator")
	if !ok || operator == "" {
		c.add(nodeID, "conditions", "condition %d: operator is required", index)

		return cond
	}

	cond.Operator = operator

	if cond.Type.Valid() && !slices.Contains(conditions.OperatorsFor(cond.Type), operator) {
		c.add(nodeID, "conditions", "condition %d: operator %q is not valid for type %q", index, operator, cond.Type)

		return cond
	}

	value, hasValue := entry["value"]
	if conditions.IsNoValueOperator(operator) {
		return cond
	}

	if !hasValue || value == nil {
		c.add(nodeID, "conditions", "condition %d: operator %q needs a value", index, operator)

		return cond
	}

	cond.Value = value

	return cond
}

// absoluteURL checks scheme and host on the raw config value. Template
// references are masked with a placeholder first so templated path or host
// segments do not trip the parser.
func absoluteURL(raw string) bool {
	parsed, err := url.Parse(maskTemplates(raw))
	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func maskTemplates(raw string) string {
	var out strings.Builder

	for {
		start := strings.Index(raw, "{{")
		if start < 0 {
			out.WriteString(raw)

			return out.String()
		}

		end := strings.Index(raw[start:], "}}")
		if end < 0 {
			out.WriteString(raw)

			return out.String()
		}

		out.WriteString(raw[:start])
		out.WriteString("x")
		raw = raw[start+end+len("}}"):]
	}
}

func stringValue(config map[string]any, key string) (string, bool) {
	raw, exists := config[key]
	if !exists || raw == nil {
		return "", false
	}

	s, ok := raw.(string)

	return s, ok
}

// intValue accepts the numeric shapes a JSON-decoded config can carry but
// rejects fractional values.
func intValue(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}

		return int(n), true
	case json.Number:
		v, err := n.Int64()
		if err != nil {
			return 0, false
		}

		return int(v), true
	default:
		return 0, false
	}
}

func stringMap(raw any) (map[string]string, bool) {
	switch m := raw.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))

		for key, value := range m {
			s, ok := value.(string)
			if !ok {
				return nil, false
			}

			out[key] = s
		}

		return out, true
	default:
		return nil, false
	}
}
