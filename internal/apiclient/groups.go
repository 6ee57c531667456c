package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/wildwatch/apicheck/pkg/sortutil"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// CreateGroup creates a group as the given user and returns its id.
func (s *Session) CreateGroup(ctx context.Context, as, group string, opts CheckOptions) (int, error) {
	name := s.GroupName(group, opts)
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/groups", as, map[string]string{"groupName": name}, opts)
	if err != nil {
		return 0, err
	}
	if !r.ok() {
		return 0, nil
	}
	s.mu.Lock()
	s.groups[group] = name
	s.mu.Unlock()
	return r.number("groupId"), nil
}

// GetGroup fetches a group with its users and devices, sorted by id unless
// opts.DoNotSort is set.
func (s *Session) GetGroup(ctx context.Context, as, group string, opts CheckOptions) (map[string]any, error) {
	path := "/api/v1/groups/" + url.PathEscape(s.GroupName(group, opts))
	r, err := s.doJSON(ctx, http.MethodGet, path, as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	g := r.object("group")
	if !opts.DoNotSort && g != nil {
		for _, field := range []string{"users", "devices"} {
			if l, ok := g[field].([]any); ok {
				g[field] = sortutil.ByKeys(l, "id")
			}
		}
	}
	return g, nil
}

// Station is a station to add to a group.
type Station struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// CreateStations adds or moves stations in a group. When opts.Warnings is
// non-nil the response warnings must match it, in any order.
func (s *Session) CreateStations(ctx context.Context, as, group string, stations []Station, from time.Time, opts CheckOptions) ([]int, error) {
	body := map[string]any{"stations": stations}
	if !from.IsZero() {
		body["fromDate"] = from.UTC().Format(time.RFC3339)
	}
	path := "/api/v1/groups/" + url.PathEscape(s.GroupName(group, opts)) + "/stations"
	r, err := s.doJSON(ctx, http.MethodPost, path, as, body, opts)
	if err != nil || !r.ok() {
		return nil, err
	}

	if opts.Warnings != nil {
		want := make([]any, len(opts.Warnings))
		for i, w := range opts.Warnings {
			want[i] = w
		}
		got := r.list("warnings")
		if !opts.DoNotSort {
			want, got = sortutil.Primitives(want), sortutil.Primitives(got)
		}
		if err := treecompare.Compare(want, got, nil); err != nil {
			return nil, fmt.Errorf("station warnings: %w", err)
		}
	}

	ids := make([]int, 0)
	for _, id := range r.list("stationIdsAddedOrUpdated") {
		ids = append(ids, int(asFloat(id)))
	}
	return ids, nil
}

// GetStations lists a group's stations, sorted by name unless
// opts.DoNotSort is set.
func (s *Session) GetStations(ctx context.Context, as, group string, opts CheckOptions) ([]any, error) {
	path := "/api/v1/groups/" + url.PathEscape(s.GroupName(group, opts)) + "/stations"
	r, err := s.doJSON(ctx, http.MethodGet, path, as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	stations := r.list("stations")
	if !opts.DoNotSort {
		stations = sortutil.ByKeys(stations, "name")
	}
	return stations, nil
}
