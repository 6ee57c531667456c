package treecompare

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestCompare_Reflexive(t *testing.T) {
	values := []any{
		nil,
		true,
		float64(3.5),
		"possum",
		[]any{},
		map[string]any{},
		map[string]any{
			"id":   float64(12),
			"name": "trailcam-1",
			"tracks": []any{
				map[string]any{"start": 1.5, "tags": []any{map[string]any{"what": "cat", "confidence": 0.9}}},
				map[string]any{"start": 4.0, "tags": []any{}},
			},
			"location": map[string]any{"lat": -43.5, "lng": 172.6},
			"deleted":  nil,
		},
		[]any{"a", float64(1), false, nil, []any{"nested"}},
	}
	for _, v := range values {
		cp, err := Normalize(v)
		if err != nil {
			t.Fatalf("Normalize(%v): %v", v, err)
		}
		if err := Compare(v, cp, nil); err != nil {
			t.Errorf("Compare(%s, copy) = %v, want nil", Describe(v), err)
		}
	}
}

func TestCompare_ExclusionSuppressesSubtree(t *testing.T) {
	expected := map[string]any{"a": map[string]any{"b": 1}}
	actual := map[string]any{"a": map[string]any{"b": 2}}

	tests := []struct {
		name     string
		excluded []string
		wantErr  bool
	}{
		{"exclude parent", []string{".a"}, false},
		{"exclude leaf", []string{".a.b"}, false},
		{"no exclusion", nil, true},
		{"unrelated exclusion", []string{".c"}, true},
		{"prefix is not a match", []string{".a.bc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(expected, actual, tt.excluded)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compare() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var me *MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("expected *MismatchError, got %T", err)
			}
			if me.Kind != ValueMismatch || me.Path != ".a.b" {
				t.Errorf("got %v at %q, want value mismatch at .a.b", me.Kind, me.Path)
			}
		})
	}
}

func idList(ids ...float64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = map[string]any{"id": id, "what": "possum"}
	}
	return out
}

func TestCompare_WildcardUniformity(t *testing.T) {
	expected := idList(1, 2, 3)
	actual := idList(10, 20, 30)

	if err := Compare(expected, actual, []string{"[].id"}); err != nil {
		t.Errorf("Compare with [].id exclusion = %v, want nil", err)
	}

	err := Compare(expected, actual, []string{"[0].id"})
	if !errors.Is(err, ErrPattern) {
		t.Fatalf("Compare with [0].id = %v, want PatternError", err)
	}
	var pe *PatternError
	if !errors.As(err, &pe) || pe.Pattern != "[0].id" {
		t.Errorf("PatternError should name the pattern, got %v", err)
	}

	err = Compare(expected, actual, nil)
	var me *MismatchError
	if !errors.As(err, &me) || me.Path != "[0].id" {
		t.Errorf("first mismatch should be at [0].id, got %v", err)
	}
}

func TestCompare_PatternErrorBeforeComparison(t *testing.T) {
	// identical values still fail: a bad exclusion list must never pass silently
	v := map[string]any{"a": 1}
	if err := Compare(v, v, []string{".a", "tracks"}); !errors.Is(err, ErrPattern) {
		t.Errorf("Compare() = %v, want ErrPattern", err)
	}
}

func TestCompare_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		wantKind Kind
	}{
		{"number sentinel zero", NotNullNumber, float64(0), 0},
		{"number sentinel string", NotNullNumber, "abc", 0},
		{"string sentinel empty", NotNullString, "", 0},
		{"sentinel accepts mapping", NotNullString, map[string]any{"x": 1}, 0},
		{"number sentinel null", NotNullNumber, nil, NotNullViolation},
		{"string sentinel null", NotNullString, nil, NotNullViolation},
		{"sentinel undefined", map[string]any{"id": NotNullNumber}, map[string]any{}, NotNullViolation},
		{"int64 sentinel", int64(NotNullNumber), float64(481), 0},
		{"sentinel inside string is literal", "id=NOT_NULL", "id=5", ValueMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(tt.expected, tt.actual, nil)
			if tt.wantKind == 0 {
				if err != nil {
					t.Fatalf("Compare() = %v, want nil", err)
				}
				return
			}
			var me *MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("Compare() = %v, want *MismatchError", err)
			}
			if me.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", me.Kind, tt.wantKind)
			}
		})
	}
}

func TestCompare_NotNullReportsUndefined(t *testing.T) {
	err := Compare(map[string]any{"id": NotNullNumber}, map[string]any{}, nil)
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if me.Path != ".id" || me.Expected != "not-null sentinel" || me.Actual != "undefined" {
		t.Errorf("unexpected error fields: %+v", me)
	}
	if !errors.Is(err, ErrNotNullViolation) {
		t.Error("errors.Is(err, ErrNotNullViolation) = false")
	}
}

func TestCompare_LengthMismatch(t *testing.T) {
	err := Compare([]any{1, 2, 3}, []any{1, 2}, nil)
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if me.Kind != StructuralMismatch {
		t.Errorf("kind = %v, want structural mismatch", me.Kind)
	}
	if !strings.Contains(me.Expected, "3") || !strings.Contains(me.Actual, "2") {
		t.Errorf("lengths not reported: expected %q, actual %q", me.Expected, me.Actual)
	}
	if me.Path != "" || !strings.Contains(err.Error(), "<root>") {
		t.Errorf("root mismatch should render as <root>: %v", err)
	}
}

func TestCompare_ConcreteScenario(t *testing.T) {
	expected := map[string]any{
		"tracks": []map[string]any{{"id": NotNullNumber, "tag": "possum"}},
	}
	actual := map[string]any{
		"tracks": []any{map[string]any{"id": float64(481), "tag": "possum"}},
	}
	if err := Compare(expected, actual, []string{}); err != nil {
		t.Fatalf("Compare() = %v, want nil", err)
	}

	actual["tracks"].([]any)[0].(map[string]any)["tag"] = "cat"
	err := Compare(expected, actual, nil)
	var me *MismatchError
	if !errors.As(err, &me) {
		t.Fatalf("Compare() = %v, want mismatch", err)
	}
	if me.Kind != ValueMismatch || me.Path != ".tracks[0].tag" {
		t.Errorf("got %v at %s, want value mismatch at .tracks[0].tag", me.Kind, me.Path)
	}
	if me.Expected != `"possum"` || me.Actual != `"cat"` {
		t.Errorf("rendered values = %s / %s", me.Expected, me.Actual)
	}
	if me.Pattern() != ".tracks[].tag" {
		t.Errorf("Pattern() = %q", me.Pattern())
	}
}

func TestCompare_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		wantKind Kind
		wantPath string
	}{
		{"sequence vs mapping", []any{}, map[string]any{}, StructuralMismatch, ""},
		{"mapping vs sequence", map[string]any{"a": 1}, []any{1}, StructuralMismatch, ""},
		{"leaf vs mapping", map[string]any{"a": "x"}, map[string]any{"a": map[string]any{}}, StructuralMismatch, ".a"},
		{"string vs number", map[string]any{"a": "1"}, map[string]any{"a": 1}, ValueMismatch, ".a"},
		{"null vs undefined", map[string]any{"a": nil}, map[string]any{}, ValueMismatch, ".a"},
		{"extra key", map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, StructuralMismatch, ".b"},
		{"missing key", map[string]any{"a": 1, "b": 2}, map[string]any{"a": 1}, ValueMismatch, ".b"},
		{"int vs float", map[string]any{"n": 2}, map[string]any{"n": 2.5}, ValueMismatch, ".n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(tt.expected, tt.actual, nil)
			var me *MismatchError
			if !errors.As(err, &me) {
				t.Fatalf("Compare() = %v, want mismatch", err)
			}
			if me.Kind != tt.wantKind || me.Path != tt.wantPath {
				t.Errorf("got %v at %q, want %v at %q", me.Kind, me.Path, tt.wantKind, tt.wantPath)
			}
		})
	}
}

func TestCompare_ExtraKeyExcluded(t *testing.T) {
	expected := map[string]any{"name": "trap"}
	actual := map[string]any{"name": "trap", "updatedAt": "2024-01-01T00:00:00Z"}
	if err := Compare(expected, actual, []string{".updatedAt"}); err != nil {
		t.Errorf("Compare() = %v, want nil", err)
	}
}

func TestCompare_AbsentKeyExpectation(t *testing.T) {
	expected := map[string]any{"name": "trap", "deletedAt": Undefined}
	if err := Compare(expected, map[string]any{"name": "trap"}, nil); err != nil {
		t.Errorf("Compare() = %v, want nil", err)
	}
	if err := Compare(expected, map[string]any{"name": "trap", "deletedAt": nil}, nil); err == nil {
		t.Error("expected mismatch when key is present")
	}
}

func TestCompare_FailFastOrder(t *testing.T) {
	expected := map[string]any{"a": 1, "b": 2, "c": []any{1, 2}}
	actual := map[string]any{"a": 9, "b": 9, "c": []any{9, 9}}
	err := Compare(expected, actual, nil)
	var me *MismatchError
	if !errors.As(err, &me) || me.Path != ".a" {
		t.Errorf("first mismatch should be .a, got %v", err)
	}
}

func TestCompare_SequenceRoot(t *testing.T) {
	expected := []any{map[string]any{"id": 1, "tracks": []any{map[string]any{"id": 5}}}}
	actual := []any{map[string]any{"id": 2, "tracks": []any{map[string]any{"id": 6}}}}

	// a mapping-root pattern never matches a sequence-root traversal
	if err := Compare(expected, actual, []string{".id", ".tracks[].id"}); err == nil {
		t.Error("mapping-root patterns should not match a sequence root")
	}
	if err := Compare(expected, actual, []string{"[].id", "[].tracks[].id"}); err != nil {
		t.Errorf("Compare() = %v, want nil", err)
	}
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	expected := map[string]any{"ids": []int{1, 2}}
	actual := map[string]any{"ids": []any{float64(1), float64(2)}, "extra": true}
	excluded := []string{".extra"}

	if err := Compare(expected, actual, excluded); err != nil {
		t.Fatalf("Compare() = %v", err)
	}
	if _, ok := expected["ids"].([]int); !ok {
		t.Error("expected input was modified")
	}
	if len(actual) != 2 || excluded[0] != ".extra" {
		t.Error("actual or exclusions were modified")
	}
}

func TestCompare_TypedInputs(t *testing.T) {
	type tag struct {
		What       string  `json:"what"`
		Confidence float64 `json:"confidence"`
		ID         int     `json:"id"`
	}
	expected := []tag{{What: "possum", Confidence: 0.8, ID: NotNullNumber}}
	actual := []byte(`[{"what":"possum","confidence":0.8,"id":77}]`)

	decoded, err := Normalize(json.RawMessage(actual))
	if err != nil {
		t.Fatal(err)
	}
	if err := Compare(expected, decoded, nil); err != nil {
		t.Errorf("Compare() = %v, want nil", err)
	}
}

func TestMatcher_Reusable(t *testing.T) {
	m, err := NewMatcher("[].id", "[].createdAt")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Compare(idList(1), idList(float64(i+5))); err != nil {
			t.Errorf("run %d: %v", i, err)
		}
	}
	if !m.Excluded("[4].createdAt") {
		t.Error("Excluded([4].createdAt) = false")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in   any
		want Rule
	}{
		{float64(NotNullNumber), NotNull},
		{NotNullString, NotNull},
		{float64(99998), Exact},
		{"not_null", Exact},
		{"NOT_NULL and more", Exact},
		{nil, Exact},
		{[]any{NotNullString}, Exact},
	}
	for _, tt := range tests {
		if got := Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
