// Package template resolves {{node_id.path}} references in node
// configuration strings against the accumulated execution context.
//
// Resolution is deliberately lossy: an unresolvable reference becomes the
// empty string rather than an error, because strictness belongs to the
// plan builder, not runtime substitution.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hookflow/hookflow/pkg/models"
)

const (
	markerStart = "{{"
	markerEnd   = "}}"
)

// HasReferences reports whether the input contains at least one complete
// {{...}} marker pair.
func HasReferences(input string) bool {
	start := strings.Index(input, markerStart)
	if start == -1 {
		return false
	}

	return strings.Contains(input[start+len(markerStart):], markerEnd)
}

// Resolve expands every {{node_id.dotted.path}} occurrence in raw against
// the context. When the entire input is exactly one reference the native
// resolved value is returned (numbers stay numbers, booleans stay
// booleans, objects stay maps); any surrounding text forces string
// rendering. Inputs without markers are returned unchanged.
func Resolve(raw string, ec models.ExecutionContext) any {
	if !HasReferences(raw) {
		return raw
	}

	if expr, ok := wholeExpression(raw); ok {
		value, found := lookup(expr, ec)
		if !found {
			return ""
		}

		return value
	}

	return interpolate(raw, ec)
}

// ResolveString expands references and always renders the result as a
// string, for fields that are textual by nature (URLs, headers, bodies).
func ResolveString(raw string, ec models.ExecutionContext) string {
	resolved := Resolve(raw, ec)
	if s, ok := resolved.(string); ok {
		return s
	}

	return Stringify(resolved)
}

// ResolveMap expands references in every value of a string map, leaving
// keys untouched. Used for HTTP header resolution.
func ResolveMap(values map[string]string, ec models.ExecutionContext) map[string]string {
	if values == nil {
		return nil
	}

	resolved := make(map[string]string, len(values))
	for key, value := range values {
		resolved[key] = ResolveString(value, ec)
	}

	return resolved
}

// wholeExpression returns the inner expression when raw is exactly one
// {{...}} reference with no surrounding text.
func wholeExpression(raw string) (string, bool) {
	if !strings.HasPrefix(raw, markerStart) || !strings.HasSuffix(raw, markerEnd) {
		return "", false
	}

	inner := raw[len(markerStart) : len(raw)-len(markerEnd)]
	if strings.Contains(inner, markerStart) || strings.Contains(inner, markerEnd) {
		return "", false
	}

	return strings.TrimSpace(inner), true
}

// interpolate scans raw left to right, replacing each {{...}} token with
// the inline rendering of its resolved value. Unterminated markers are
// copied through verbatim.
func interpolate(raw string, ec models.ExecutionContext) string {
	var result strings.Builder

	result.Grow(len(raw))

	i := 0
	for i < len(raw) {
		idx := strings.Index(raw[i:], markerStart)
		if idx == -1 {
			result.WriteString(raw[i:])

			break
		}

		result.WriteString(raw[i : i+idx])

		start := i + idx + len(markerStart)

		end := strings.Index(raw[start:], markerEnd)
		if end == -1 {
			result.WriteString(raw[i+idx:])

			break
		}

		end += start

		expr := strings.TrimSpace(raw[start:end])

		value, found := lookup(expr, ec)
		if found {
			result.WriteString(Stringify(value))
		}

		i = end + len(markerEnd)
	}

	return result.String()
}

// lookup resolves a dotted expression: the first segment names a node in
// the context, the rest walks that node's fragment through nested maps and
// slices (numeric segments index slices).
func lookup(expr string, ec models.ExecutionContext) (any, bool) {
	if expr == "" || ec == nil {
		return nil, false
	}

	segments := strings.Split(expr, ".")

	current, ok := ec[segments[0]]
	if !ok {
		return nil, false
	}

	for _, segment := range segments[1:] {
		if segment == "" {
			return nil, false
		}

		switch v := current.(type) {
		case map[string]any:
			value, exists := v[segment]
			if !exists {
				return nil, false
			}

			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(v) {
				return nil, false
			}

			current = v[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// Stringify converts a resolved value to its textual form. Integral
// floats render without a decimal point, objects and arrays as compact
// JSON, nil as the empty string. Shared by string interpolation and the
// condition evaluator's string comparisons.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(data)
	default:
		return fmt.Sprintf("%v", v)
	}
}
