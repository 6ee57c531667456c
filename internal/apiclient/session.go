// Package apiclient wraps the wildlife monitoring API's endpoints for
// black-box tests. A Session carries everything the wrappers need to know
// about the run: where the API lives, how to name test fixtures, and the
// credentials of the users and devices created so far.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultPassword is used for every user and device the session creates.
const DefaultPassword = "p4ssw0rd-apicheck"

// Namer makes fixture names unique per run so suites can share an API.
type Namer struct {
	Prefix string
	run    string
}

// NewNamer creates a Namer with a fresh run suffix.
func NewNamer(prefix string) *Namer {
	if prefix == "" {
		prefix = "ac"
	}
	return &Namer{Prefix: prefix, run: uuid.NewString()[:8]}
}

// Name returns the run-specific name for base.
func (n *Namer) Name(base string) string {
	return fmt.Sprintf("%s-%s-%s", n.Prefix, base, n.run)
}

// Principal is a user or device the session holds a token for.
type Principal struct {
	Key   string // the name tests refer to it by
	Name  string // the name the API knows it by
	ID    int
	Token string
	Group string // devices only: the API group name
}

// CheckOptions tune how a single operation is checked.
type CheckOptions struct {
	// UseRawGroupName sends the group name as given instead of the
	// run-specific name from the Namer.
	UseRawGroupName bool
	// DoNotSort keeps list results in server order.
	DoNotSort bool
	// Warnings, when non-nil, are the warnings the response must carry.
	Warnings []string
	// ExpectStatus, when non-zero, is the only acceptable status code.
	// A matching non-2xx response is not an error.
	ExpectStatus int
}

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Expected   int // 0 means any 2xx
	Messages   []string
}

func (e *StatusError) Error() string {
	want := "2xx"
	if e.Expected != 0 {
		want = fmt.Sprint(e.Expected)
	}
	return fmt.Sprintf("%s %s: status %d (want %s): %s",
		e.Method, e.Path, e.StatusCode, want, strings.Join(e.Messages, "; "))
}

// Session is the state of one test run against the API.
type Session struct {
	BaseURL string
	HTTP    *http.Client
	Namer   *Namer

	mu      sync.RWMutex
	users   map[string]Principal
	devices map[string]Principal
	groups  map[string]string
}

// NewSession creates a session against baseURL, for example
// "http://localhost:1080".
func NewSession(baseURL string, httpClient *http.Client, namer *Namer) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if namer == nil {
		namer = NewNamer("")
	}
	return &Session{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    httpClient,
		Namer:   namer,
		users:   make(map[string]Principal),
		devices: make(map[string]Principal),
		groups:  make(map[string]string),
	}
}

// User returns a user created in this session.
func (s *Session) User(key string) (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[key]
	return p, ok
}

// Device returns a device created in this session.
func (s *Session) Device(key string) (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.devices[key]
	return p, ok
}

// GroupName returns the API name of a group key.
func (s *Session) GroupName(key string, opts CheckOptions) string {
	if opts.UseRawGroupName {
		return key
	}
	s.mu.RLock()
	name, ok := s.groups[key]
	s.mu.RUnlock()
	if ok {
		return name
	}
	return s.Namer.Name(key)
}

// token resolves a user or device key to its bearer token.
func (s *Session) token(key string) (string, error) {
	if key == "" {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.users[key]; ok {
		return p.Token, nil
	}
	if p, ok := s.devices[key]; ok {
		return p.Token, nil
	}
	return "", fmt.Errorf("no user or device %q in this session", key)
}

// tokenClaims mirrors the claims the API signs into its tokens.
type tokenClaims struct {
	Type string `json:"_type"`
	ID   int    `json:"id"`
	jwt.RegisteredClaims
}

// claimsOf reads a token's claims without verifying its signature: the
// session has no key, it only needs the subject the API put there.
func claimsOf(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return claims, nil
}

// reply is a decoded API response.
type reply struct {
	Status int
	Body   map[string]any
}

// ok reports whether the response is a success the caller can read from.
func (r *reply) ok() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *reply) number(field string) int {
	f, _ := r.Body[field].(float64)
	return int(f)
}

func (r *reply) list(field string) []any {
	l, _ := r.Body[field].([]any)
	if l == nil {
		return []any{}
	}
	return l
}

func (r *reply) object(field string) map[string]any {
	m, _ := r.Body[field].(map[string]any)
	return m
}

// doJSON sends body as JSON.
func (s *Session) doJSON(ctx context.Context, method, path, as string, body any, opts CheckOptions) (*reply, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		rd = bytes.NewReader(data)
	}
	return s.do(ctx, method, path, as, "application/json", rd, opts)
}

func (s *Session) do(ctx context.Context, method, path, as, contentType string, body io.Reader, opts CheckOptions) (*reply, error) {
	token, err := s.token(as)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	r := &reply{Status: resp.StatusCode, Body: map[string]any{}}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &r.Body); err != nil {
			return nil, fmt.Errorf("%s %s: status %d, body is not a JSON object: %s", method, path, resp.StatusCode, raw)
		}
	}

	accepted := r.ok()
	if opts.ExpectStatus != 0 {
		accepted = r.Status == opts.ExpectStatus
	}
	if !accepted {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: r.Status,
			Expected:   opts.ExpectStatus,
			Messages:   messages(r.Body),
		}
	}
	return r, nil
}

func messages(body map[string]any) []string {
	raw, _ := body["messages"].([]any)
	out := make([]string, 0, len(raw))
	for _, m := range raw {
		out = append(out, fmt.Sprint(m))
	}
	return out
}
