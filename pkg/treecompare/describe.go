package treecompare

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const maxDescribeLen = 120

// Describe renders a normalized value for failure messages.
func Describe(v any) string {
	switch t := v.(type) {
	case undefined:
		return "undefined"
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(data)
	if len(s) > maxDescribeLen {
		s = s[:maxDescribeLen] + "..."
	}
	return s
}

// shape names the structural category of a normalized value.
func shape(v any) string {
	switch v.(type) {
	case undefined:
		return "undefined"
	case nil:
		return "null"
	case []any:
		return "sequence"
	case map[string]any:
		return "mapping"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func isContainer(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}
