// Package suite is the black-box regression suite for the wildlife
// monitoring API. Every check drives the API through an apiclient.Session
// and compares responses with the tree and flat comparators, so it runs
// unchanged against the real API or the in-memory fake.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wildwatch/apicheck/internal/apiclient"
)

// Check is one named test of an API area.
type Check struct {
	Area string
	Name string
	Run  func(ctx context.Context, s *apiclient.Session) error
}

// Result represents the outcome of a single check.
type Result struct {
	Area     string
	Name     string
	Passed   bool
	Err      error
	Duration time.Duration
}

// Report holds the results of a full suite run.
type Report struct {
	BaseURL  string
	Results  []Result
	Passed   int
	Failed   int
	Duration time.Duration
}

// Checks returns every check in the order they run.
func Checks() []Check {
	return []Check{
		{"users", "users register and log in", checkUsers},
		{"groups", "group lists its users and devices", checkGroups},
		{"groups", "non-members cannot read a group", checkGroupAccess},
		{"devices", "devices register into a group", checkDevices},
		{"devices", "device names are unique within a group", checkDuplicateDevice},
		{"stations", "stations warn when too close together", checkStations},
		{"stations", "recordings match the nearest station", checkStationMatching},
		{"recordings", "recording upload and read back", checkRecordings},
		{"recordings", "recordings query by type and device", checkRecordingQuery},
		{"recordings", "deleted recordings are gone", checkDeleteRecording},
		{"tracks", "tracks and tags are listed in order", checkTracks},
		{"tracks", "tracks cannot end after the recording", checkTrackBounds},
		{"alerts", "alerts fire on matching tags", checkAlerts},
		{"events", "device events are queryable", checkEvents},
	}
}

// Select returns the checks whose area or name contains filter. An empty
// filter selects everything.
func Select(filter string) ([]Check, error) {
	all := Checks()
	if filter == "" {
		return all, nil
	}
	var out []Check
	for _, c := range all {
		if c.Area == filter || strings.Contains(c.Name, filter) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no checks match %q", filter)
	}
	return out, nil
}

// Run executes checks in order against the session's API. A failed check
// does not stop the run.
func Run(ctx context.Context, s *apiclient.Session, checks []Check, logger *slog.Logger) *Report {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	report := &Report{BaseURL: s.BaseURL}

	for _, c := range checks {
		if ctx.Err() != nil {
			break
		}
		began := time.Now()
		err := c.Run(ctx, s)
		res := Result{Area: c.Area, Name: c.Name, Passed: err == nil, Err: err, Duration: time.Since(began)}
		report.Results = append(report.Results, res)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
		logger.Debug("check finished", "area", c.Area, "check", c.Name, "passed", res.Passed, "duration", res.Duration)
	}

	report.Duration = time.Since(start)
	return report
}
