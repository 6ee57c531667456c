package treecompare

import (
	"strconv"
	"strings"
)

// Wildcard is the path segment meaning "every position of the sequence here".
const Wildcard = "[]"

// ParsePattern validates an exclusion path and returns it unchanged.
//
// Grammar: a pattern is a non-empty run of segments, each either
// ".name" (a mapping field) or "[]" (every element of a sequence). A
// pattern starting with "." addresses a mapping root, one starting with
// "[]" a sequence root. Concrete indices such as "[0]" are rejected:
// exclusion is uniform across all positions of a sequence.
func ParsePattern(pattern string) (string, error) {
	if pattern == "" {
		return "", &PatternError{Pattern: pattern, Reason: "empty pattern"}
	}
	i := 0
	for i < len(pattern) {
		switch pattern[i] {
		case '.':
			j := i + 1
			for j < len(pattern) && pattern[j] != '.' && pattern[j] != '[' {
				if pattern[j] == ']' {
					return "", &PatternError{Pattern: pattern, Reason: "unbalanced ']' in field name"}
				}
				j++
			}
			if j == i+1 {
				return "", &PatternError{Pattern: pattern, Reason: "empty field name at offset " + strconv.Itoa(i)}
			}
			i = j
		case '[':
			if strings.HasPrefix(pattern[i:], Wildcard) {
				i += len(Wildcard)
				continue
			}
			end := strings.IndexByte(pattern[i:], ']')
			if end > 1 && isDigits(pattern[i+1:i+end]) {
				return "", &PatternError{
					Pattern: pattern,
					Reason:  "index-specific segment " + pattern[i:i+end+1] + " is not allowed, use []",
				}
			}
			return "", &PatternError{Pattern: pattern, Reason: "malformed sequence segment at offset " + strconv.Itoa(i)}
		default:
			if i == 0 {
				return "", &PatternError{Pattern: pattern, Reason: "must start with '.' or '[]'"}
			}
			return "", &PatternError{Pattern: pattern, Reason: "unexpected character after '[]' at offset " + strconv.Itoa(i)}
		}
	}
	return pattern, nil
}

// NormalizePath replaces every bracketed numeric index in a concrete
// traversal path with the wildcard: ".tracks[2].tags[0]" -> ".tracks[].tags[]".
func NormalizePath(path string) string {
	if strings.IndexByte(path, '[') < 0 {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '[' {
			end := strings.IndexByte(path[i:], ']')
			if end > 1 && isDigits(path[i+1:i+end]) {
				b.WriteString(Wildcard)
				i += end
				continue
			}
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

// Match reports whether a concrete traversal path is denoted by pattern.
// Matching is exact on the normalized form: no prefixes, no regexps.
func Match(pattern, concretePath string) bool {
	return pattern == NormalizePath(concretePath)
}

// Matcher holds a validated, immutable set of exclusion paths.
type Matcher struct {
	patterns map[string]struct{}
}

// NewMatcher validates every pattern up front so a malformed exclusion
// fails before any value is compared.
func NewMatcher(patterns ...string) (*Matcher, error) {
	m := &Matcher{patterns: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		if _, err := ParsePattern(p); err != nil {
			return nil, err
		}
		m.patterns[p] = struct{}{}
	}
	return m, nil
}

// Excluded reports whether the concrete path falls on an exclusion path.
func (m *Matcher) Excluded(concretePath string) bool {
	return m.excluded(NormalizePath(concretePath))
}

func (m *Matcher) excluded(normalized string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	_, ok := m.patterns[normalized]
	return ok
}

// Patterns returns the exclusion paths in no particular order.
func (m *Matcher) Patterns() []string {
	out := make([]string, 0, len(m.patterns))
	for p := range m.patterns {
		out = append(out, p)
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
