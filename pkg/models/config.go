package models

// Typed node configurations. The plan builder decodes each stored node's
// untyped config into exactly one of these variants; executors never see
// raw maps.

// TriggerConfig holds the decoded configuration of a webhook trigger node.
type TriggerConfig struct {
	// Path is the webhook path the workflow listens on. Always starts
	// with '/' and is unique across workflows.
	Path string `json:"path"`
	// PayloadSchema is an optional JSON Schema document; when present the
	// ingress validates the webhook body against it before dispatching.
	PayloadSchema map[string]any `json:"payload_schema,omitempty"`
}

// HTTPConfig holds the decoded configuration of an http_action node.
// URL, Body, and every header value may contain template references that
// are resolved against the execution context at run time.
type HTTPConfig struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body,omitempty"`
	TimeoutSeconds int               `json:"timeout_seconds"`
}

// Bounds for HTTPConfig.TimeoutSeconds, enforced at plan build time.
const (
	HTTPTimeoutMinSeconds     = 1
	HTTPTimeoutMaxSeconds     = 300
	HTTPTimeoutDefaultSeconds = 30
)

// AllowedHTTPMethods is the closed set of outbound methods an http_action
// node may use.
var AllowedHTTPMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE"}

// FilterLogic combines the results of a filter node's conditions.
type FilterLogic string

const (
	FilterLogicAnd FilterLogic = "and"
	FilterLogicOr  FilterLogic = "or"
)

// FilterConfig holds the decoded configuration of a filter node. The
// combined condition result is compared against ContinueOn: a match lets
// the chain continue, a mismatch halts it.
type FilterConfig struct {
	Conditions []FilterCondition `json:"conditions"`
	Logic      FilterLogic       `json:"logic"`
	ContinueOn bool              `json:"continue_on"`
}
