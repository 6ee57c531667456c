package suite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wildwatch/apicheck/internal/apiclient"
	"github.com/wildwatch/apicheck/internal/wildtwin"
	"github.com/wildwatch/apicheck/pkg/testutil"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := wildtwin.New(&twincore.Config{Name: "suite-test", LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSuitePassesAgainstFakeAPI(t *testing.T) {
	ts := newServer(t)
	s := apiclient.NewSession(ts.URL, ts.Client(), apiclient.NewNamer("suite"))

	report := Run(context.Background(), s, Checks(), quietLogger())
	for _, r := range report.Results {
		if !r.Passed {
			t.Errorf("%s / %s: %v", r.Area, r.Name, r.Err)
		}
	}
	if report.Passed != len(Checks()) || report.Failed != 0 {
		t.Errorf("passed %d, failed %d, want %d passed", report.Passed, report.Failed, len(Checks()))
	}
	if report.BaseURL != ts.URL {
		t.Errorf("BaseURL = %q, want %q", report.BaseURL, ts.URL)
	}
}

func TestSuiteRunsTwiceOnOneAPI(t *testing.T) {
	ts := newServer(t)
	for i := 0; i < 2; i++ {
		s := apiclient.NewSession(ts.URL, ts.Client(), apiclient.NewNamer("suite"))
		report := Run(context.Background(), s, Checks(), quietLogger())
		if report.Failed != 0 {
			t.Fatalf("run %d: %d checks failed", i+1, report.Failed)
		}
	}
}

func TestSuiteReportsFailures(t *testing.T) {
	ts := newServer(t)
	admin := testutil.NewAdminClient(testutil.NewTwinClient(t, ts))
	admin.InjectFault("/api/v1/events", map[string]any{"status_code": 503, "message": "maintenance"}).
		AssertStatus(http.StatusOK)

	checks, err := Select("events")
	if err != nil {
		t.Fatal(err)
	}
	devices, _ := Select("devices")
	checks = append(checks, devices...)

	s := apiclient.NewSession(ts.URL, ts.Client(), apiclient.NewNamer("suite"))
	report := Run(context.Background(), s, checks, quietLogger())

	if report.Failed != 1 || report.Passed != len(devices) {
		t.Fatalf("passed %d, failed %d", report.Passed, report.Failed)
	}
	failed := report.Results[0]
	var se *apiclient.StatusError
	if failed.Passed || !errors.As(failed.Err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected the events check to fail with a 503, got %+v", failed)
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		filter  string
		want    int
		wantErr bool
	}{
		{"", len(Checks()), false},
		{"recordings", 4, false},
		{"stations", 2, false},
		{"nearest station", 1, false},
		{"billing", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			got, err := Select(tt.filter)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("Select(%q) returned %d checks, want %d", tt.filter, len(got), tt.want)
			}
		})
	}
}

func TestRunStopsWhenCancelled(t *testing.T) {
	ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := apiclient.NewSession(ts.URL, ts.Client(), nil)
	if report := Run(ctx, s, Checks(), quietLogger()); len(report.Results) != 0 {
		t.Errorf("expected no checks to run, got %d", len(report.Results))
	}
}
