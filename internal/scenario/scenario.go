// Package scenario loads and runs YAML and JSON test scenarios against the
// wildlife API. Each step sends one request and checks the response body
// with the tree or flat comparator.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"

	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// Scenario is a complete test scenario loaded from a YAML or JSON file.
type Scenario struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description,omitempty"`
	Target      string         `yaml:"target" json:"target,omitempty"`
	Setup       *Setup         `yaml:"setup" json:"setup,omitempty"`
	Variables   map[string]any `yaml:"variables" json:"variables,omitempty"`
	Steps       []Step         `yaml:"steps" json:"steps"`

	path string
}

// Path returns the file the scenario was loaded from.
func (s *Scenario) Path() string { return s.path }

// Setup defines pre-test actions on the target's admin plane.
type Setup struct {
	Reset    bool   `yaml:"reset" json:"reset,omitempty"`
	SeedFile string `yaml:"seed_file" json:"seed_file,omitempty"`
}

// Step is a single request/expect pair within a scenario.
type Step struct {
	Name    string            `yaml:"name" json:"name"`
	Request Request           `yaml:"request" json:"request"`
	Capture map[string]string `yaml:"capture" json:"capture,omitempty"`
	Expect  *Expect           `yaml:"expect" json:"expect,omitempty"`
}

// Request defines the HTTP request to make during a step.
type Request struct {
	Method  string            `yaml:"method" json:"method"`
	Path    string            `yaml:"path" json:"path"`
	Headers map[string]string `yaml:"headers" json:"headers,omitempty"`
	Body    any               `yaml:"body" json:"body,omitempty"`
	// As names a variable holding a bearer token, usually one captured
	// from a login or registration step.
	As string `yaml:"as" json:"as,omitempty"`
}

// Expect defines the expected results of a step.
type Expect struct {
	Status       int               `yaml:"status" json:"status,omitempty"`
	BodyContains string            `yaml:"body_contains" json:"body_contains,omitempty"`
	Headers      map[string]string `yaml:"headers" json:"headers,omitempty"`

	// Field selects one top-level field of the response to compare; empty
	// compares the whole body.
	Field   string     `yaml:"field" json:"field,omitempty"`
	Body    any        `yaml:"body" json:"body,omitempty"`
	Exclude []string   `yaml:"exclude" json:"exclude,omitempty"`
	Flat    bool       `yaml:"flat" json:"flat,omitempty"`
	Sort    []SortSpec `yaml:"sort" json:"sort,omitempty"`

	// Checks are boolean expr-lang expressions over status, headers, body
	// and vars.
	Checks []string `yaml:"checks" json:"checks,omitempty"`
}

// SortSpec sorts the sequence at Path (dotted, relative to the compared
// value) by Keys on both sides before comparing.
type SortSpec struct {
	Path string   `yaml:"path" json:"path"`
	Keys []string `yaml:"keys" json:"keys"`
}

// LoadScenario parses a single YAML or JSON scenario file.
// The format is detected by file extension.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}

	var s Scenario
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (expected .json, .yaml, or .yml)", ext)
	}
	s.path = path

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the scenario's structure, its exclusion paths and the
// syntax of its checks without running anything.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		label := step.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if step.Request.Method == "" || step.Request.Path == "" {
			return fmt.Errorf("step %s: request method and path are required", label)
		}
		for name, path := range step.Capture {
			if !strings.HasPrefix(path, "$") {
				return fmt.Errorf("step %s: capture %q: path %q must start with $", label, name, path)
			}
		}
		if step.Expect == nil {
			continue
		}
		if _, err := treecompare.NewMatcher(step.Expect.Exclude...); err != nil {
			return fmt.Errorf("step %s: %w", label, err)
		}
		for _, src := range step.Expect.Checks {
			if _, err := expr.Compile(src, expr.Env(checkEnv(0, nil, nil, nil))); err != nil {
				return fmt.Errorf("step %s: check %q: %w", label, src, err)
			}
		}
	}
	return nil
}

// Files lists the .yaml, .yml and .json files in dir, in file name order.
func Files(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	return paths, nil
}

// LoadDir loads every scenario file in dir. It stops at the first file
// that fails to load.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := Files(dir)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
