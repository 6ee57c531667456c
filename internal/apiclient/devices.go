package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wildwatch/apicheck/pkg/sortutil"
)

// CreateDevice registers a device into a group and remembers its token
// under key.
func (s *Session) CreateDevice(ctx context.Context, key, group string, opts CheckOptions) (Principal, error) {
	name := s.Namer.Name(key)
	groupName := s.GroupName(group, opts)
	r, err := s.doJSON(ctx, http.MethodPost, "/api/v1/devices", "", map[string]string{
		"deviceName": name,
		"group":      groupName,
		"password":   DefaultPassword,
	}, opts)
	if err != nil {
		return Principal{}, err
	}
	if !r.ok() {
		return Principal{}, nil
	}

	token, _ := r.Body["token"].(string)
	claims, err := claimsOf(token)
	if err != nil {
		return Principal{}, err
	}
	if claims.Type != "device" || claims.ID != r.number("id") {
		return Principal{}, fmt.Errorf("device token claims %s %d do not match device %d", claims.Type, claims.ID, r.number("id"))
	}

	p := Principal{Key: key, Name: name, ID: claims.ID, Token: token, Group: groupName}
	s.mu.Lock()
	s.devices[key] = p
	s.mu.Unlock()
	return p, nil
}

// GetDevice fetches a session device as the given user.
func (s *Session) GetDevice(ctx context.Context, as, device string, opts CheckOptions) (map[string]any, error) {
	d, ok := s.Device(device)
	if !ok {
		return nil, fmt.Errorf("no device %q in this session", device)
	}
	r, err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v1/devices/%d", d.ID), as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	return r.object("device"), nil
}

// ListDevices lists the devices the user can see, sorted by id unless
// opts.DoNotSort is set.
func (s *Session) ListDevices(ctx context.Context, as string, opts CheckOptions) ([]any, error) {
	r, err := s.doJSON(ctx, http.MethodGet, "/api/v1/devices", as, nil, opts)
	if err != nil || !r.ok() {
		return nil, err
	}
	devices := r.list("devices")
	if !opts.DoNotSort {
		devices = sortutil.ByKeys(devices, "id")
	}
	return devices, nil
}
