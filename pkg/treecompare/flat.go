package treecompare

import (
	"encoding/json"
	"fmt"
)

// CompareFlat checks only the immediate keys of two mappings. Every key of
// expected that is not in excludedKeys must be present in actual with an
// equal value; extra keys in actual are ignored. Nested values are compared
// by their canonical JSON encoding rather than walked. Sentinels apply.
func CompareFlat(expected, actual any, excludedKeys []string) error {
	skip := make(map[string]struct{}, len(excludedKeys))
	for _, k := range excludedKeys {
		if k == "" {
			return &PatternError{Pattern: k, Reason: "empty key"}
		}
		skip[k] = struct{}{}
	}

	exp, err := Normalize(expected)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	act, err := Normalize(actual)
	if err != nil {
		return fmt.Errorf("actual value: %w", err)
	}

	expMap, ok := exp.(map[string]any)
	if !ok {
		return fmt.Errorf("flat comparison needs a mapping as expected value, got %s", shape(exp))
	}
	actMap, ok := act.(map[string]any)
	if !ok {
		return structural("", "mapping", act)
	}

	for _, k := range sortedKeys(expMap) {
		if _, excluded := skip[k]; excluded {
			continue
		}
		ev := expMap[k]
		av, present := actMap[k]
		if !present {
			av = Undefined
		}
		if Resolve(ev) == NotNull {
			if !satisfiesNotNull(av) {
				return &MismatchError{
					Kind:     NotNullViolation,
					Path:     "." + k,
					Expected: "not-null sentinel",
					Actual:   Describe(av),
				}
			}
			continue
		}
		if !flatEqual(ev, av) {
			return &MismatchError{
				Kind:     ValueMismatch,
				Path:     "." + k,
				Expected: Describe(ev),
				Actual:   Describe(av),
			}
		}
	}
	return nil
}

func flatEqual(expected, actual any) bool {
	if !isContainer(expected) && !isContainer(actual) {
		return expected == actual
	}
	if isContainer(expected) != isContainer(actual) {
		return false
	}
	// encoding/json sorts map keys, so equal trees encode identically.
	e, err := json.Marshal(expected)
	if err != nil {
		return false
	}
	a, err := json.Marshal(actual)
	if err != nil {
		return false
	}
	return string(e) == string(a)
}
