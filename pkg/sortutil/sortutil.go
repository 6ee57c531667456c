// Package sortutil provides the ordering helpers tests apply to both the
// expected and the actual value before a tree comparison, turning an
// order-insensitive check into an order-sensitive one.
package sortutil

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// ByKeys returns a copy of items stably sorted by the composite key formed
// from the named mapping fields. Numbers sort numerically, strings
// lexically, missing or null fields first. Items that are not mappings keep
// their relative order at the front.
func ByKeys(items []any, keys ...string) []any {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b any) int {
		am, aok := a.(map[string]any)
		bm, bok := b.(map[string]any)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return -1
		case !bok:
			return 1
		}
		for _, k := range keys {
			if c := compareLeaf(lookup(am, k), lookup(bm, k)); c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

// Primitives returns a copy of a sequence of leaf values in ascending order.
func Primitives(values []any) []any {
	out := slices.Clone(values)
	slices.SortStableFunc(out, compareLeaf)
	return out
}

// SortedBy returns a normalized copy of tree in which the sequence found at
// path (dotted field names, "" for the root) is sorted with ByKeys. A key
// of "" sorts the sequence as primitives.
func SortedBy(tree any, path string, keys ...string) (any, error) {
	root, err := treecompare.Normalize(tree)
	if err != nil {
		return nil, err
	}
	fields := splitPath(path)

	if len(fields) == 0 {
		seq, ok := root.([]any)
		if !ok {
			return nil, fmt.Errorf("sort path %q: root is not a sequence", path)
		}
		return sortSeq(seq, keys), nil
	}

	parent, ok := root.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sort path %q: root is not a mapping", path)
	}
	for i, f := range fields {
		v, ok := parent[f]
		if !ok {
			return nil, fmt.Errorf("sort path %q: field %q not found", path, f)
		}
		if i == len(fields)-1 {
			seq, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("sort path %q: %q is not a sequence", path, f)
			}
			parent[f] = sortSeq(seq, keys)
			break
		}
		next, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("sort path %q: %q is not a mapping", path, f)
		}
		parent = next
	}
	return root, nil
}

func sortSeq(seq []any, keys []string) []any {
	if len(keys) == 0 || (len(keys) == 1 && keys[0] == "") {
		return Primitives(seq)
	}
	return ByKeys(seq, keys...)
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// lookup follows dotted keys such as "device.id" into nested mappings.
func lookup(m map[string]any, key string) any {
	var cur any = m
	for _, f := range strings.Split(key, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[f]
	}
	return cur
}

// rank orders values of different kinds: null < bool < number < string < other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func compareLeaf(a, b any) int {
	if c := cmp.Compare(rank(a), rank(b)); c != 0 {
		return c
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64, int, int64:
		return cmp.Compare(toFloat(a), toFloat(b))
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
