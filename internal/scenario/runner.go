package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/wildwatch/apicheck/internal/client"
	"github.com/wildwatch/apicheck/internal/manifest"
	"github.com/wildwatch/apicheck/pkg/sortutil"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Err      error // nil when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against one target.
type Runner struct {
	target manifest.Target
	http   *http.Client
	admin  *client.AdminClient
	vars   map[string]any
}

// NewRunner creates a Runner for target. A nil httpClient gets a 10s timeout.
func NewRunner(target manifest.Target, httpClient *http.Client) *Runner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Runner{
		target: target,
		http:   httpClient,
		admin:  client.New(httpClient.Timeout),
	}
}

// Run executes a single scenario. Each step stops at its first failed
// expectation; later steps still run. An error is returned only when setup
// fails.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	r.vars = make(map[string]any, len(s.Variables))
	for k, v := range s.Variables {
		r.vars[k] = v
	}

	if s.Setup != nil {
		if err := r.runSetup(ctx, s); err != nil {
			return nil, fmt.Errorf("setup failed: %w", err)
		}
	}

	for i := range s.Steps {
		sr := r.runStep(ctx, &s.Steps[i])
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Vars returns the variables of the last run, including captures.
func (r *Runner) Vars() map[string]any {
	return r.vars
}

func (r *Runner) runSetup(ctx context.Context, s *Scenario) error {
	if (s.Setup.Reset || s.Setup.SeedFile != "") && !r.target.HasAdmin() {
		return fmt.Errorf("target has no admin plane for reset or seed")
	}
	if s.Setup.Reset {
		if _, err := r.admin.Reset(ctx, r.target.AdminURL); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if s.Setup.SeedFile != "" {
		seed := s.Setup.SeedFile
		if !filepath.IsAbs(seed) && s.path != "" {
			seed = filepath.Join(filepath.Dir(s.path), seed)
		}
		if _, err := r.admin.Seed(ctx, r.target.AdminURL, seed); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}

// response is what a step's expectations are checked against.
type response struct {
	status  int
	headers http.Header
	raw     []byte
	body    any // nil when the body is not JSON
}

func (r *Runner) runStep(ctx context.Context, step *Step) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(err error) StepResult {
		sr.Err = err
		sr.Duration = time.Since(start)
		return sr
	}

	resp, err := r.send(ctx, &step.Request)
	if err != nil {
		return fail(err)
	}

	for varName, path := range step.Capture {
		val, ok, err := Lookup(resp.body, path)
		if err != nil {
			return fail(fmt.Errorf("capture %q: %w", varName, err))
		}
		if !ok {
			return fail(fmt.Errorf("capture %q: JSONPath %q: no match found", varName, path))
		}
		r.vars[varName] = val
	}

	if step.Expect != nil {
		if err := r.check(step.Expect, resp); err != nil {
			return fail(err)
		}
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}

func (r *Runner) send(ctx context.Context, req *Request) (*response, error) {
	path, err := ExpandTemplates(req.Path, r.vars)
	if err != nil {
		return nil, fmt.Errorf("template expansion in path: %w", err)
	}
	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		url = r.target.BaseURL + path
	}

	var body io.Reader
	if req.Body != nil {
		expanded, err := ExpandValue(req.Body, r.vars)
		if err != nil {
			return nil, fmt.Errorf("template expansion in body: %w", err)
		}
		data, err := json.Marshal(expanded)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), url, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.As != "" {
		token, ok := r.vars[req.As].(string)
		if !ok {
			return nil, fmt.Errorf("as %q: no token variable with that name", req.As)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range req.Headers {
		expanded, err := ExpandTemplates(v, r.vars)
		if err != nil {
			return nil, fmt.Errorf("template expansion in header %q: %w", k, err)
		}
		httpReq.Header.Set(k, expanded)
	}

	httpResp, err := r.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &response{status: httpResp.StatusCode, headers: httpResp.Header, raw: raw}
	if len(bytes.TrimSpace(raw)) > 0 {
		// non-JSON bodies can still be checked with body_contains
		_ = json.Unmarshal(raw, &resp.body)
	}
	return resp, nil
}

// ErrStatus is wrapped by status code mismatches.
var ErrStatus = errors.New("unexpected status")

func (r *Runner) check(exp *Expect, resp *response) error {
	if exp.Status != 0 && resp.status != exp.Status {
		return fmt.Errorf("%w: expected %d, got %d: %s", ErrStatus, exp.Status, resp.status, bytes.TrimSpace(resp.raw))
	}
	if exp.BodyContains != "" && !strings.Contains(string(resp.raw), exp.BodyContains) {
		return fmt.Errorf("body does not contain %q", exp.BodyContains)
	}
	for key, want := range exp.Headers {
		if got := resp.headers.Get(key); got != want {
			return fmt.Errorf("header %q: expected %q, got %q", key, want, got)
		}
	}
	if exp.Body != nil {
		if err := r.compareBody(exp, resp); err != nil {
			return err
		}
	}
	for _, src := range exp.Checks {
		if err := r.runCheck(src, resp); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) compareBody(exp *Expect, resp *response) error {
	expected, err := ExpandValue(exp.Body, r.vars)
	if err != nil {
		return fmt.Errorf("template expansion in expected body: %w", err)
	}
	actual := resp.body
	if exp.Field != "" {
		m, ok := actual.(map[string]any)
		if !ok {
			return fmt.Errorf("response body is not a JSON object, cannot select %q", exp.Field)
		}
		if actual, ok = m[exp.Field]; !ok {
			return fmt.Errorf("response has no field %q", exp.Field)
		}
	}

	for _, by := range exp.Sort {
		if expected, err = sortutil.SortedBy(expected, by.Path, by.Keys...); err != nil {
			return fmt.Errorf("sorting expected %q: %w", by.Path, err)
		}
		if actual, err = sortutil.SortedBy(actual, by.Path, by.Keys...); err != nil {
			return fmt.Errorf("sorting response %q: %w", by.Path, err)
		}
	}

	if exp.Flat {
		return treecompare.CompareFlat(expected, actual, exp.Exclude)
	}
	return treecompare.Compare(expected, actual, exp.Exclude)
}

// checkEnv is the environment checks are evaluated in.
func checkEnv(status int, headers http.Header, body any, vars map[string]any) map[string]any {
	flat := make(map[string]string, len(headers))
	for k := range headers {
		flat[k] = headers.Get(k)
	}
	if vars == nil {
		vars = map[string]any{}
	}
	return map[string]any{
		"status":  status,
		"headers": flat,
		"body":    body,
		"vars":    vars,
	}
}

func (r *Runner) runCheck(src string, resp *response) error {
	env := checkEnv(resp.status, resp.headers, resp.body, r.vars)
	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return fmt.Errorf("check %q: %w", src, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("check %q: %w", src, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return fmt.Errorf("check %q: expected a boolean result, got %T", src, out)
	}
	if !ok {
		return fmt.Errorf("check failed: %s", src)
	}
	return nil
}
