package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wildwatch/apicheck/pkg/sortutil"
)

// AlertCondition matches tags added to the device's recordings.
type AlertCondition struct {
	Tag       string `json:"tag"`
	Automatic bool   `json:"automatic"`
}

// Alert is an alert to create. A nil FrequencySeconds takes the API default.
type Alert struct {
	Name             string
	Conditions       []AlertCondition
	FrequencySeconds *int
}

// CreateAlert creates an alert on a session device and returns its id.
func (s *Session) CreateAlert(ctx context.Context, as, device string, a Alert, opts CheckOptions) (int, error) {
	d, ok := s.Device(device)
	if !ok {
		return 0, fmt.Errorf("no device %q in this session", device)
	}
	body := map[string]any{
		"name":       a.Name,
		"deviceId":   d.ID,
		"conditions": a.Conditions,
	}
	if a.FrequencySeconds != nil {
		body["frequencySeconds"] = *a.FrequencySeconds
	}
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/alerts", as, body, opts)
	if err != nil || !r.ok() {
		return 0, err
	}
	return r.number("id"), nil
}

// GetAlerts lists the alerts on a device visible to the user, sorted by id
// unless opts.DoNotSort is set.
func (s *Session) GetAlerts(ctx context.Context, as, device string, opts CheckOptions) ([]any, error) {
	d, ok := s.Device(device)
	if !ok {
		return nil, fmt.Errorf("no device %q in this session", device)
	}
	r, err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/alerts/device/%d", d.ID), as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	alerts := r.list("alerts")
	if !opts.DoNotSort {
		alerts = sortutil.ByKeys(alerts, "id")
	}
	return alerts, nil
}
