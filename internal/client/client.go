// Package client provides an HTTP client for a fake API's /admin endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// AdminClient talks to /admin/* endpoints.
type AdminClient struct {
	http *http.Client
}

// New creates an AdminClient with the given timeout (5s if zero).
func New(timeout time.Duration) *AdminClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdminClient{
		http: &http.Client{Timeout: timeout},
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health(ctx context.Context, adminURL string) (bool, string) {
	body, status, err := c.do(ctx, http.MethodGet, adminURL+"/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	if status == http.StatusOK {
		return true, body
	}
	return false, fmt.Sprintf("status %d: %s", status, body)
}

// Reset calls POST /admin/reset.
func (c *AdminClient) Reset(ctx context.Context, adminURL string) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, adminURL+"/admin/reset", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("reset returned status %d: %s", status, body)
	}
	return body, nil
}

// Seed POSTs the contents of a JSON file to /admin/state.
func (c *AdminClient) Seed(ctx context.Context, adminURL, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("seed file %s is not valid JSON", filePath)
	}
	body, status, err := c.do(ctx, http.MethodPost, adminURL+"/admin/state", data)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("seed failed (status %d): %s", status, body)
	}
	return body, nil
}

// AdvanceTime moves the fake API's simulated clock forward.
func (c *AdminClient) AdvanceTime(ctx context.Context, adminURL string, d time.Duration) error {
	payload, _ := json.Marshal(map[string]string{"duration": d.String()})
	body, status, err := c.do(ctx, http.MethodPost, adminURL+"/admin/time/advance", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("advancing time failed (status %d): %s", status, body)
	}
	return nil
}

func (c *AdminClient) do(ctx context.Context, method, url string, payload []byte) (string, int, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return "", 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(body)), resp.StatusCode, nil
}
