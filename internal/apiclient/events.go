package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Event is a device event description.
type Event struct {
	Type    string         `json:"type"`
	Details map[string]any `json:"details,omitempty"`
}

// AddEvent records ev on a session device at each of times and returns the
// new event ids.
func (s *Session) AddEvent(ctx context.Context, as, device string, ev Event, times []time.Time, opts CheckOptions) ([]int, error) {
	d, ok := s.Device(device)
	if !ok {
		return nil, fmt.Errorf("no device %q in this session", device)
	}
	stamps := make([]string, len(times))
	for i, t := range times {
		stamps[i] = t.UTC().Format(time.RFC3339)
	}
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/events", as, map[string]any{
		"deviceId":    d.ID,
		"description": ev,
		"dateTimes":   stamps,
	}, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	ids := make([]int, 0)
	for _, id := range r.list("eventIds") {
		ids = append(ids, int(asFloat(id)))
	}
	if added := r.number("eventsAdded"); added != len(times) {
		return ids, fmt.Errorf("expected %d events added, API reports %d", len(times), added)
	}
	return ids, nil
}

// EventQuery filters GET /events. Zero fields are not sent.
type EventQuery struct {
	DeviceID int
	Type     string
	Start    time.Time
	End      time.Time
	Offset   int
	Limit    int
}

func (q EventQuery) encode() string {
	v := url.Values{}
	if q.DeviceID != 0 {
		v.Set("deviceId", strconv.Itoa(q.DeviceID))
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if !q.Start.IsZero() {
		v.Set("startTime", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("endTime", q.End.UTC().Format(time.RFC3339))
	}
	if q.Offset != 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit != 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// QueryEvents lists events the user can see.
func (s *Session) QueryEvents(ctx context.Context, as string, q EventQuery, opts CheckOptions) (Page, error) {
	r, err := s.doJSON(ctx, http.MethodGet, "/api/v1/events"+q.encode(), as, nil, opts)
	if err != nil || !r.ok() {
		return Page{}, err
	}
	return Page{Rows: r.list("rows"), Count: r.number("count")}, nil
}
