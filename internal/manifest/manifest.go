// Package manifest parses apicheck.yaml project manifests.
package manifest

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target is one API deployment the suite can run against.
type Target struct {
	BaseURL  string `yaml:"base_url"`
	AdminURL string `yaml:"admin_url"` // fake APIs only; defaults to base_url
	Seed     string `yaml:"seed"`      // state file loaded by "apicheck seed"
}

// HasAdmin reports whether the target exposes the /admin control plane.
// Targets that set admin_url to "none" are real deployments.
func (t Target) HasAdmin() bool {
	return t.AdminURL != "none"
}

// Settings holds global settings from the manifest.
type Settings struct {
	ScenarioDir string `yaml:"scenario_dir"`
	TestPrefix  string `yaml:"test_prefix"`
	Verbose     bool   `yaml:"verbose"`
}

// Manifest represents a parsed apicheck.yaml file.
type Manifest struct {
	Targets  map[string]Target `yaml:"targets"`
	Settings Settings          `yaml:"settings"`
}

// Load reads and parses an apicheck.yaml file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses manifest contents. JSON is accepted too, being valid YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if len(m.Targets) == 0 {
		return nil, fmt.Errorf("manifest has no targets defined")
	}

	if m.Settings.ScenarioDir == "" {
		m.Settings.ScenarioDir = "scenarios"
	}
	if m.Settings.TestPrefix == "" {
		m.Settings.TestPrefix = "ac"
	}

	for name, t := range m.Targets {
		if t.BaseURL == "" {
			return nil, fmt.Errorf("target %q: base_url is required", name)
		}
		if err := checkURL(t.BaseURL); err != nil {
			return nil, fmt.Errorf("target %q: base_url: %w", name, err)
		}
		t.BaseURL = strings.TrimRight(t.BaseURL, "/")
		// the fake API serves /admin on the same router
		if t.AdminURL == "" {
			t.AdminURL = t.BaseURL
		} else if t.HasAdmin() {
			if err := checkURL(t.AdminURL); err != nil {
				return nil, fmt.Errorf("target %q: admin_url: %w", name, err)
			}
			t.AdminURL = strings.TrimRight(t.AdminURL, "/")
		}
		m.Targets[name] = t
	}

	return &m, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https URL", raw)
	}
	return nil
}

// Target returns a named target, or an error if not found.
func (m *Manifest) Target(name string) (Target, error) {
	t, ok := m.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("target %q not found in manifest", name)
	}
	return t, nil
}

// TargetNames returns all target names in sorted order.
func (m *Manifest) TargetNames() []string {
	names := make([]string, 0, len(m.Targets))
	for name := range m.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
