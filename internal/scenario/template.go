package scenario

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ExpandTemplates replaces placeholders in a string:
//   - {{env.VARIABLE}} from environment variables
//   - {{variable_name}} from scenario and captured variables
func ExpandTemplates(s string, vars map[string]any) (string, error) {
	result := s
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			return "", fmt.Errorf("unterminated template expression at position %d", start)
		}
		end += start + 2 // move past "}}"

		value, err := resolveExpr(strings.TrimSpace(result[start+2:end-2]), vars)
		if err != nil {
			return "", err
		}
		result = result[:start] + render(value) + result[end:]
	}
	return result, nil
}

// ExpandValue expands templates in every string of a decoded JSON or YAML
// value. A string that is exactly one placeholder is replaced by the
// variable's value with its type, so "{{deviceId}}" can stand for a number.
func ExpandValue(v any, vars map[string]any) (any, error) {
	switch t := v.(type) {
	case string:
		if inner, ok := soleExpr(t); ok {
			return resolveExpr(inner, vars)
		}
		return ExpandTemplates(t, vars)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			x, err := ExpandValue(e, vars)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			x, err := ExpandValue(e, vars)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	default:
		return v, nil
	}
}

func soleExpr(s string) (string, bool) {
	if !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	inner := s[2 : len(s)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func resolveExpr(expr string, vars map[string]any) (any, error) {
	if key, ok := strings.CutPrefix(expr, "env."); ok {
		return os.Getenv(key), nil
	}
	if val, ok := vars[expr]; ok {
		return val, nil
	}
	return nil, fmt.Errorf("unresolved template expression: %q", expr)
}

// render formats a variable for inclusion in a larger string. Whole
// numbers print without a fraction so captured ids work in paths.
func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
