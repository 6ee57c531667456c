// Package treecompare decides whether an API response matches an expected
// shape while ignoring fields whose values cannot be predicted.
//
// Values are JSON-like trees. Exclusion paths such as ".tracks[].tags[].id"
// skip whole subtrees, and the sentinels NotNullNumber and NotNullString
// accept any present value. Comparison is fail-fast: the first difference
// found in a deterministic walk is returned as a *MismatchError.
//
// Mapping keys are visited in sorted order, sequence elements in index
// order. The tree comparator requires the key sets of both mappings to be
// equal (after exclusions); the flat comparator only checks the keys the
// expected mapping names.
package treecompare

import (
	"fmt"
	"sort"
)

// Compare walks expected and actual in lock-step and returns the first
// mismatch, or a *PatternError if any exclusion path is malformed. Neither
// input is modified.
func Compare(expected, actual any, excluded []string) error {
	m, err := NewMatcher(excluded...)
	if err != nil {
		return err
	}
	return m.Compare(expected, actual)
}

// Compare runs the tree comparator using the matcher's exclusion paths.
func (m *Matcher) Compare(expected, actual any) error {
	exp, err := Normalize(expected)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	act, err := Normalize(actual)
	if err != nil {
		return fmt.Errorf("actual value: %w", err)
	}
	return m.walk(exp, act, "", "")
}

// walk carries the concrete path for messages and its normalized form for
// exclusion lookups, so indices are never re-parsed.
func (m *Matcher) walk(expected, actual any, path, norm string) error {
	if m.excluded(norm) {
		return nil
	}

	if Resolve(expected) == NotNull {
		if !satisfiesNotNull(actual) {
			return &MismatchError{
				Kind:     NotNullViolation,
				Path:     path,
				Expected: "not-null sentinel",
				Actual:   Describe(actual),
			}
		}
		return nil
	}

	switch exp := expected.(type) {
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return structural(path, "sequence", actual)
		}
		if len(exp) != len(act) {
			return &MismatchError{
				Kind:     StructuralMismatch,
				Path:     path,
				Expected: fmt.Sprintf("sequence of length %d", len(exp)),
				Actual:   fmt.Sprintf("sequence of length %d", len(act)),
			}
		}
		for i := range exp {
			idx := fmt.Sprintf("[%d]", i)
			if err := m.walk(exp[i], act[i], path+idx, norm+Wildcard); err != nil {
				return err
			}
		}
		return nil

	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return structural(path, "mapping", actual)
		}
		for _, k := range sortedKeys(exp) {
			av, present := act[k]
			if !present {
				av = Undefined
			}
			if err := m.walk(exp[k], av, path+"."+k, norm+"."+k); err != nil {
				return err
			}
		}
		for _, k := range sortedKeys(act) {
			if _, ok := exp[k]; ok {
				continue
			}
			if m.excluded(norm + "." + k) {
				continue
			}
			return &MismatchError{
				Kind:     StructuralMismatch,
				Path:     path + "." + k,
				Expected: "undefined",
				Actual:   Describe(act[k]),
				Detail:   "unexpected key",
			}
		}
		return nil
	}

	if isContainer(actual) {
		return structural(path, shape(expected)+" "+Describe(expected), actual)
	}
	if expected != actual {
		return &MismatchError{
			Kind:     ValueMismatch,
			Path:     path,
			Expected: Describe(expected),
			Actual:   Describe(actual),
		}
	}
	return nil
}

func structural(path, want string, actual any) error {
	return &MismatchError{
		Kind:     StructuralMismatch,
		Path:     path,
		Expected: want,
		Actual:   shape(actual) + " " + Describe(actual),
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
