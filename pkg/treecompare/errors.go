package treecompare

import (
	"errors"
	"fmt"
)

// Kind classifies a comparison failure.
type Kind int

const (
	// StructuralMismatch means the shapes disagree: sequence vs mapping vs
	// primitive, a sequence length differs, or a mapping has an unexpected key.
	StructuralMismatch Kind = iota + 1
	// ValueMismatch means both sides are leaves but their values differ.
	ValueMismatch
	// NotNullViolation means a not-null sentinel met null or undefined.
	NotNullViolation
)

func (k Kind) String() string {
	switch k {
	case StructuralMismatch:
		return "structural mismatch"
	case ValueMismatch:
		return "value mismatch"
	case NotNullViolation:
		return "not-null violation"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrStructuralMismatch = errors.New("structural mismatch")
	ErrValueMismatch      = errors.New("value mismatch")
	ErrNotNullViolation   = errors.New("not-null violation")
	ErrPattern            = errors.New("invalid exclusion path")
)

// MismatchError reports the first difference found during a comparison.
type MismatchError struct {
	Kind     Kind
	Path     string // concrete traversal path, e.g. .tracks[2].tags[0].id
	Expected string // rendered expected value
	Actual   string // rendered actual value
	Detail   string // optional extra context, e.g. "unexpected key"
}

func (e *MismatchError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	msg := fmt.Sprintf("%s at %s: expected %s, got %s", e.Kind, path, e.Expected, e.Actual)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Is lets errors.Is match a MismatchError against its Kind's sentinel.
func (e *MismatchError) Is(target error) bool {
	switch target {
	case ErrStructuralMismatch:
		return e.Kind == StructuralMismatch
	case ErrValueMismatch:
		return e.Kind == ValueMismatch
	case ErrNotNullViolation:
		return e.Kind == NotNullViolation
	}
	return false
}

// Pattern returns the failing path with concrete indices replaced by [],
// i.e. the exclusion path that would have suppressed this failure.
func (e *MismatchError) Pattern() string {
	return NormalizePath(e.Path)
}

// PatternError reports an exclusion path or key that does not parse.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid exclusion path %q: %s", e.Pattern, e.Reason)
}

// Is matches ErrPattern.
func (e *PatternError) Is(target error) bool {
	return target == ErrPattern
}
