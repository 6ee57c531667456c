package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup evaluates a simple JSONPath expression against decoded JSON.
// Supports $, $.field, $.field.nested, $.array[0] and $.array[0].field.
// The boolean is false when the path does not match.
func Lookup(doc any, path string) (any, bool, error) {
	rest, ok := strings.CutPrefix(path, "$")
	if !ok {
		return nil, false, fmt.Errorf("JSONPath must start with $: %q", path)
	}
	rest = strings.TrimPrefix(rest, ".")

	current := doc
	for _, seg := range splitPathSegments(rest) {
		if seg == "" {
			continue
		}
		field, indexes, err := parseSegment(seg)
		if err != nil {
			return nil, false, fmt.Errorf("JSONPath %q: %w", path, err)
		}
		if field != "" {
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			if current, ok = m[field]; !ok {
				return nil, false, nil
			}
		}
		for _, idx := range indexes {
			arr, ok := current.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false, nil
			}
			current = arr[idx]
		}
	}
	return current, true, nil
}

// parseSegment splits "tracks[0][1]" into its field and indexes.
func parseSegment(seg string) (string, []int, error) {
	idx := strings.IndexByte(seg, '[')
	if idx < 0 {
		return seg, nil, nil
	}
	field, rest := seg[:idx], seg[idx:]
	var indexes []int
	for rest != "" {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			return "", nil, fmt.Errorf("malformed index in %q", seg)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil {
			return "", nil, fmt.Errorf("invalid array index in %q: %w", seg, err)
		}
		indexes = append(indexes, n)
		rest = rest[end+1:]
	}
	return field, indexes, nil
}

// splitPathSegments splits a path like "field.nested[0].name" into segments.
func splitPathSegments(path string) []string {
	var segments []string
	var current strings.Builder
	depth := 0

	for _, ch := range path {
		switch ch {
		case '[':
			depth++
			current.WriteRune(ch)
		case ']':
			depth--
			current.WriteRune(ch)
		case '.':
			if depth == 0 {
				segments = append(segments, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}
