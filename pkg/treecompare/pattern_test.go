package treecompare

import (
	"errors"
	"testing"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern string
		wantErr bool
	}{
		{".id", false},
		{".tracks[].tags[].id", false},
		{"[].id", false},
		{"[]", false},
		{"[][]", false},
		{".matrix[][].x", false},
		{".a.b.c", false},
		{".tracks[]", false},
		{"", true},
		{"id", true},
		{"tracks[].id", true},
		{"[0].id", true},
		{".tracks[3].id", true},
		{".a..b", true},
		{".", true},
		{".a.", true},
		{".a[", true},
		{".a[x]", true},
		{".a]", true},
		{"[]id", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			_, err := ParsePattern(tt.pattern)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePattern(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPattern) {
				t.Errorf("error %v does not match ErrPattern", err)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{".a.b", ".a.b"},
		{".tracks[2].tags[0].id", ".tracks[].tags[].id"},
		{"[0]", "[]"},
		{"[12][3]", "[][]"},
		{".weird[x]", ".weird[x]"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{".tracks[].tags[].id", ".tracks[2].tags[0].id", true},
		{".tracks[].tags[].id", ".tracks[2].tags[0]", false},
		{".tracks[]", ".tracks[2].tags[0].id", false},
		{".tracks", ".tracks", true},
		{"[].id", "[4].id", true},
		{".id", "[4].id", false},
		{"[].id", ".id", false},
	}
	for _, tt := range tests {
		if got := Match(tt.pattern, tt.path); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestNewMatcher_RejectsBadPattern(t *testing.T) {
	_, err := NewMatcher(".ok", ".tracks[1]")
	var pe *PatternError
	if !errors.As(err, &pe) {
		t.Fatalf("NewMatcher() = %v, want *PatternError", err)
	}
	if pe.Pattern != ".tracks[1]" {
		t.Errorf("Pattern = %q", pe.Pattern)
	}
}
