// Package testutil provides an HTTP client, an admin client and tree
// assertions for testing the wildlife API in-process or over the network.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// Reporter is the part of testing.T the tree assertions need.
type Reporter interface {
	Helper()
	Fatalf(format string, args ...any)
}

// CheckTreeStructuresAreEqualExcept fails the test at the first difference
// between expected and actual outside the excluded paths.
func CheckTreeStructuresAreEqualExcept(t Reporter, expected, actual any, excluded ...string) {
	t.Helper()
	if err := treecompare.Compare(expected, actual, excluded); err != nil {
		t.Fatalf("%v", err)
	}
}

// CheckFlatStructuresAreEqualExcept fails the test if any top-level key of
// expected, other than excludedKeys, differs in actual.
func CheckFlatStructuresAreEqualExcept(t Reporter, expected, actual any, excludedKeys ...string) {
	t.Helper()
	if err := treecompare.CompareFlat(expected, actual, excludedKeys); err != nil {
		t.Fatalf("%v", err)
	}
}

// TwinClient is an HTTP client for the API under test.
type TwinClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Headers    map[string]string // sent with every request
	t          *testing.T
}

// NewTwinClient creates a client pointed at a test server.
func NewTwinClient(t *testing.T, server *httptest.Server) *TwinClient {
	return &TwinClient{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		t:          t,
	}
}

// NewTwinClientURL creates a client pointed at a specific URL.
func NewTwinClientURL(t *testing.T, baseURL string) *TwinClient {
	return &TwinClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		t:          t,
	}
}

// WithToken returns a copy of the client that sends a bearer token.
func (c *TwinClient) WithToken(token string) *TwinClient {
	headers := make(map[string]string, len(c.Headers)+1)
	for k, v := range c.Headers {
		headers[k] = v
	}
	headers["Authorization"] = "Bearer " + token
	cp := *c
	cp.Headers = headers
	return &cp
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          *testing.T
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

// Field returns one top-level field of the JSON body, decoded.
func (r *Response) Field(name string) any {
	r.t.Helper()
	m := r.JSONMap()
	v, ok := m[name]
	if !ok {
		r.t.Fatalf("response has no field %q\nbody: %s", name, string(r.Body))
	}
	return v
}

// ID returns a numeric top-level field such as "recordingId" as an int.
func (r *Response) ID(name string) int {
	r.t.Helper()
	f, ok := r.Field(name).(float64)
	if !ok {
		r.t.Fatalf("field %q is not a number\nbody: %s", name, string(r.Body))
	}
	return int(f)
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertBodyContains asserts the response body contains the given substring.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// AssertTree compares the field of the body named by field (or the whole
// body when field is empty) with expected using the tree comparator.
func (r *Response) AssertTree(field string, expected any, excluded ...string) *Response {
	r.t.Helper()
	var actual any = r.JSONMap()
	if field != "" {
		actual = r.Field(field)
	}
	CheckTreeStructuresAreEqualExcept(r.t, expected, actual, excluded...)
	return r
}

// AssertFlat compares the field of the body named by field (or the whole
// body) with expected using the flat comparator.
func (r *Response) AssertFlat(field string, expected any, excludedKeys ...string) *Response {
	r.t.Helper()
	var actual any = r.JSONMap()
	if field != "" {
		actual = r.Field(field)
	}
	CheckFlatStructuresAreEqualExcept(r.t, expected, actual, excludedKeys...)
	return r
}

// Get performs a GET request.
func (c *TwinClient) Get(path string) *Response {
	c.t.Helper()
	return c.do("GET", path, nil, nil)
}

// Post performs a POST request with a JSON body.
func (c *TwinClient) Post(path string, body any) *Response {
	c.t.Helper()
	return c.do("POST", path, body, nil)
}

// Put performs a PUT request with a JSON body.
func (c *TwinClient) Put(path string, body any) *Response {
	c.t.Helper()
	return c.do("PUT", path, body, nil)
}

// Delete performs a DELETE request.
func (c *TwinClient) Delete(path string) *Response {
	c.t.Helper()
	return c.do("DELETE", path, nil, nil)
}

// DoWithHeaders performs a request with custom headers.
func (c *TwinClient) DoWithHeaders(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()
	return c.do(method, path, body, headers)
}

// PostRaw performs a POST with a pre-encoded body, e.g. multipart.
func (c *TwinClient) PostRaw(path, contentType string, body []byte) *Response {
	c.t.Helper()
	req, err := http.NewRequest("POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.doReq(req, nil)
}

func (c *TwinClient) do(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		c.t.Fatalf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doReq(req, headers)
}

func (c *TwinClient) doReq(req *http.Request, headers map[string]string) *Response {
	c.t.Helper()
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("failed to read response: %v", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
		t:          c.t,
	}
}

// AdminClient provides convenience methods for the /admin/* control plane.
type AdminClient struct {
	*TwinClient
}

// NewAdminClient creates an admin client from a twin client.
func NewAdminClient(tc *TwinClient) *AdminClient {
	return &AdminClient{tc}
}

// Reset calls POST /admin/reset.
func (ac *AdminClient) Reset() *Response {
	ac.t.Helper()
	return ac.Post("/admin/reset", nil)
}

// GetState calls GET /admin/state.
func (ac *AdminClient) GetState() *Response {
	ac.t.Helper()
	return ac.Get("/admin/state")
}

// LoadState calls POST /admin/state with the given state data.
func (ac *AdminClient) LoadState(state any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/state", state)
}

// InjectFault calls POST /admin/fault/{endpoint}. endpoint may end in "/*".
func (ac *AdminClient) InjectFault(endpoint string, fault any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/fault/"+strings.TrimPrefix(endpoint, "/"), fault)
}

// RemoveFault calls DELETE /admin/fault/{endpoint}.
func (ac *AdminClient) RemoveFault(endpoint string) *Response {
	ac.t.Helper()
	return ac.Delete("/admin/fault/" + strings.TrimPrefix(endpoint, "/"))
}

// GetRequests calls GET /admin/requests.
func (ac *AdminClient) GetRequests() *Response {
	ac.t.Helper()
	return ac.Get("/admin/requests")
}

// AdvanceTime calls POST /admin/time/advance.
func (ac *AdminClient) AdvanceTime(duration string) *Response {
	ac.t.Helper()
	return ac.Post("/admin/time/advance", map[string]string{"duration": duration})
}

// SetConfig calls PUT /admin/config.
func (ac *AdminClient) SetConfig(updates map[string]any) *Response {
	ac.t.Helper()
	return ac.Put("/admin/config", updates)
}

// Health calls GET /admin/health.
func (ac *AdminClient) Health() *Response {
	ac.t.Helper()
	return ac.Get("/admin/health")
}

// String renders a response for failure messages.
func (r *Response) String() string {
	return fmt.Sprintf("%d %s", r.StatusCode, string(r.Body))
}
