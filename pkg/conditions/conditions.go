// Package conditions evaluates typed filter conditions against the
// accumulated execution context. Each condition carries a declared type
// (string, number, boolean) that selects its operator set and coercion
// rules; the operator sets are closed and exported so the plan builder
// validates against the same tables the evaluator dispatches on.
package conditions

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/hookflow/hookflow/pkg/flowerr"
	"github.com/hookflow/hookflow/pkg/models"
	"github.com/hookflow/hookflow/pkg/template"
)

// Operators, grouped by the condition type they belong to.
const (
	OpEquals             = "equals"
	OpNotEquals          = "not_equals"
	OpContains           = "contains"
	OpNotContains        = "not_contains"
	OpStartsWith         = "starts_with"
	OpEndsWith           = "ends_with"
	OpIsEmpty            = "is_empty"
	OpIsNotEmpty         = "is_not_empty"
	OpGreaterThan        = "greater_than"
	OpGreaterThanOrEqual = "greater_than_or_equal"
	OpLessThan           = "less_than"
	OpLessThanOrEqual    = "less_than_or_equal"
	OpIsTrue             = "is_true"
	OpIsFalse            = "is_false"
)

var (
	stringOperators  = []string{OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpIsEmpty, OpIsNotEmpty}
	numberOperators  = []string{OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual}
	booleanOperators = []string{OpIsTrue, OpIsFalse}

	noValueOperators = []string{OpIsEmpty, OpIsNotEmpty, OpIsTrue, OpIsFalse}
)

// OperatorsFor returns the closed operator set of a condition type, nil
// for an unknown type.
func OperatorsFor(conditionType models.ConditionType) []string {
	switch conditionType {
	case models.ConditionTypeString:
		return stringOperators
	case models.ConditionTypeNumber:
		return numberOperators
	case models.ConditionTypeBoolean:
		return booleanOperators
	default:
		return nil
	}
}

// IsNoValueOperator reports whether the operator compares the left side
// alone, making the condition's value field optional.
func IsNoValueOperator(operator string) bool {
	return slices.Contains(noValueOperators, operator)
}

// Evaluate resolves both sides of the condition against the execution
// context and applies the typed comparison. Coercion failures and unknown
// operators surface as configuration errors; the filter executor turns
// them into a failed run.
func Evaluate(cond models.FilterCondition, ec models.ExecutionContext) (bool, error) {
	left := template.Resolve(cond.Field, ec)
	right := resolveValue(cond.Value, ec)

	switch cond.Type {
	case models.ConditionTypeString:
		return evaluateString(cond.Operator, left, right)
	case models.ConditionTypeNumber:
		return evaluateNumber(cond.Operator, left, right)
	case models.ConditionTypeBoolean:
		return evaluateBoolean(cond.Operator, left)
	default:
		return false, flowerr.NewConfigurationError("unknown condition type %q", cond.Type)
	}
}

// resolveValue expands template references in string values; non-string
// literals (numbers, booleans from JSON configs) pass through untouched.
func resolveValue(value any, ec models.ExecutionContext) any {
	if s, ok := value.(string); ok {
		return template.Resolve(s, ec)
	}

	return value
}

func evaluateString(operator string, left, right any) (bool, error) {
	l := template.Stringify(left)
	r := template.Stringify(right)

	switch operator {
	case OpEquals:
		return l == r, nil
	case OpNotEquals:
		return l != r, nil
	case OpContains:
		return strings.Contains(l, r), nil
	case OpNotContains:
		return !strings.Contains(l, r), nil
	case OpStartsWith:
		return strings.HasPrefix(l, r), nil
	case OpEndsWith:
		return strings.HasSuffix(l, r), nil
	case OpIsEmpty:
		return l == "", nil
	case OpIsNotEmpty:
		return l != "", nil
	default:
		return false, flowerr.NewConfigurationError("unknown string operator %q", operator)
	}
}

func evaluateNumber(operator string, left, right any) (bool, error) {
	l, err := toNumber(left)
	if err != nil {
		return false, flowerr.NewConfigurationError("left value %v is not numeric: %v", left, err)
	}

	r, err := toNumber(right)
	if err != nil {
		return false, flowerr.NewConfigurationError("right value %v is not numeric: %v", right, err)
	}

	switch operator {
	case OpEquals:
		return l == r, nil
	case OpNotEquals:
		return l != r, nil
	case OpGreaterThan:
		return l > r, nil
	case OpGreaterThanOrEqual:
		return l >= r, nil
	case OpLessThan:
		return l < r, nil
	case OpLessThanOrEqual:
		return l <= r, nil
	default:
		return false, flowerr.NewConfigurationError("unknown number operator %q", operator)
	}
}

func evaluateBoolean(operator string, left any) (bool, error) {
	switch operator {
	case OpIsTrue:
		return truthy(left), nil
	case OpIsFalse:
		return !truthy(left), nil
	default:
		return false, flowerr.NewConfigurationError("unknown boolean operator %q", operator)
	}
}

// toNumber coerces native JSON numbers and numeric strings to float64.
// Booleans are deliberately not numbers.
func toNumber(value any) (float64, error) {
	switch n := value.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, flowerr.NewConfigurationError("value of type %T cannot be coerced to a number", value)
	}
}

// truthy applies the fixed coercion table: true, "true" and 1 are truthy,
// everything else is falsy.
func truthy(value any) bool {
	switch b := value.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	case float64:
		return b == 1
	case int:
		return b == 1
	case json.Number:
		f, err := b.Float64()

		return err == nil && f == 1
	default:
		return false
	}
}
