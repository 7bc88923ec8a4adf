package models

// ConditionType selects the comparison semantics of a filter condition.
type ConditionType string

const (
	ConditionTypeString  ConditionType = "string"
	ConditionTypeNumber  ConditionType = "number"
	ConditionTypeBoolean ConditionType = "boolean"
)

// Valid reports whether the condition type is one of the known types.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionTypeString, ConditionTypeNumber, ConditionTypeBoolean:
		return true
	default:
		return false
	}
}

// FilterCondition is a single typed comparison inside a filter node.
// Field and Value may contain template references; both are resolved
// against the execution context before comparison.
type FilterCondition struct {
	Field    string        `json:"field"    validate:"required"`
	Operator string        `json:"operator" validate:"required"`
	Value    any           `json:"value,omitempty"`
	Type     ConditionType `json:"type"     validate:"required"`
}
