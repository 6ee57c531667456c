package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func lookupFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestFromLookupDefaults(t *testing.T) {
	env, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup() error: %v", err)
	}
	want := &Env{Timeout: 10 * time.Second, TestPrefix: "ac", ConfigPath: "apicheck.yaml"}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
	if env.HasSuperuser() {
		t.Error("expected no superuser by default")
	}
}

func TestFromLookup(t *testing.T) {
	env, err := FromLookup(lookupFrom(map[string]string{
		EnvAPIURL:            "http://localhost:1080/",
		EnvSuperuser:         "admin_test",
		EnvSuperuserPassword: "secret",
		EnvTimeout:           "30s",
		EnvTestPrefix:        "ci42",
		EnvConfig:            "ci/apicheck.yaml",
	}))
	if err != nil {
		t.Fatalf("FromLookup() error: %v", err)
	}
	want := &Env{
		APIURL:            "http://localhost:1080",
		Superuser:         "admin_test",
		SuperuserPassword: "secret",
		Timeout:           30 * time.Second,
		TestPrefix:        "ci42",
		ConfigPath:        "ci/apicheck.yaml",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
}

func TestFromLookupInvalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"bad url", map[string]string{EnvAPIURL: "not a url"}, "APIURL"},
		{"bad timeout", map[string]string{EnvTimeout: "soon"}, EnvTimeout},
		{"negative timeout", map[string]string{EnvTimeout: "-1s"}, "Timeout"},
		{"huge timeout", map[string]string{EnvTimeout: "1h"}, "Timeout"},
		{"password missing", map[string]string{EnvSuperuser: "admin_test"}, "SuperuserPassword"},
		{"prefix with dash", map[string]string{EnvTestPrefix: "a-b"}, "TestPrefix"},
		{"prefix too long", map[string]string{EnvTestPrefix: "abcdefghij"}, "TestPrefix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(tt.vars))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "APICHECK_TEST_PREFIX=fromfile\nAPICHECK_TIMEOUT=3s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// the process environment wins over the file
	t.Setenv(EnvTimeout, "7s")
	t.Setenv(EnvTestPrefix, "")
	os.Unsetenv(EnvTestPrefix)

	env, err := LoadEnv(path)
	if err != nil {
		t.Fatalf("LoadEnv() error: %v", err)
	}
	if env.TestPrefix != "fromfile" {
		t.Errorf("TestPrefix = %q, want fromfile", env.TestPrefix)
	}
	if env.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s", env.Timeout)
	}
}

func TestLoadEnvMissingFile(t *testing.T) {
	if _, err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}
}
