package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wildwatch/apicheck/pkg/admin"
	"github.com/wildwatch/apicheck/pkg/store"
	"github.com/wildwatch/apicheck/pkg/twincore"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type memState struct{ data map[string]any }

func (m *memState) Snapshot() any { return m.data }
func (m *memState) Reset()        { m.data = map[string]any{} }
func (m *memState) LoadState(b []byte) error {
	return json.Unmarshal(b, &m.data)
}

// newTestServer serves a couple of API-like routes plus the real admin plane.
func newTestServer() *httptest.Server {
	tw := twincore.New(&twincore.Config{Name: "testutil", LogOutput: io.Discard})

	tw.Router.Get("/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		twincore.Success(w, http.StatusOK, map[string]any{
			"recording": map[string]any{
				"id":     481,
				"tracks": []any{map[string]any{"id": 12, "tag": "possum"}},
			},
		})
	})
	tw.Router.Post("/recordings", func(w http.ResponseWriter, r *http.Request) {
		twincore.Success(w, http.StatusOK, map[string]any{"recordingId": 7}, "Thanks for the recording!")
	})
	tw.Router.Delete("/recordings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	tw.Router.Get("/echo-headers", func(w http.ResponseWriter, r *http.Request) {
		headers := map[string]string{}
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}
		twincore.JSON(w, http.StatusOK, headers)
	})
	tw.Router.Post("/echo-body", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, r.Header.Get("Content-Type"))
		io.Copy(w, r.Body)
	})

	h := admin.NewHandler(&memState{data: map[string]any{"items": []any{"a"}}}, tw.Middleware(), store.NewClock())
	h.SetConfigProvider(tw)
	h.Routes(tw.Router)

	return httptest.NewServer(tw)
}

// fakeT records Fatalf calls instead of stopping the test.
type fakeT struct {
	failed bool
	msg    string
}

func (f *fakeT) Helper() {}
func (f *fakeT) Fatalf(format string, args ...any) {
	f.failed = true
	f.msg = fmt.Sprintf(format, args...)
}

// ---------------------------------------------------------------------------
// Tree assertions
// ---------------------------------------------------------------------------

func TestCheckTreeStructuresAreEqualExcept(t *testing.T) {
	expected := map[string]any{"tracks": []any{map[string]any{"id": 99999, "tag": "possum"}}}

	tests := []struct {
		name     string
		actual   any
		excluded []string
		wantFail string
	}{
		{"sentinel absorbs id", map[string]any{"tracks": []any{map[string]any{"id": 481, "tag": "possum"}}}, nil, ""},
		{"value mismatch", map[string]any{"tracks": []any{map[string]any{"id": 481, "tag": "cat"}}}, nil, ".tracks[0].tag"},
		{"excluded tag", map[string]any{"tracks": []any{map[string]any{"id": 481, "tag": "cat"}}}, []string{".tracks[].tag"}, ""},
		{"bad pattern", map[string]any{"tracks": []any{}}, []string{".tracks[0].tag"}, "invalid exclusion path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := &fakeT{}
			CheckTreeStructuresAreEqualExcept(ft, expected, tt.actual, tt.excluded...)
			if ft.failed != (tt.wantFail != "") {
				t.Fatalf("failed = %v (%s), want failure containing %q", ft.failed, ft.msg, tt.wantFail)
			}
			if tt.wantFail != "" && !strings.Contains(ft.msg, tt.wantFail) {
				t.Errorf("failure %q does not mention %q", ft.msg, tt.wantFail)
			}
		})
	}
}

func TestCheckFlatStructuresAreEqualExcept(t *testing.T) {
	expected := map[string]any{"deviceName": "cam-1", "id": "NOT_NULL", "lastConnectionTime": "x"}
	actual := map[string]any{"deviceName": "cam-1", "id": 3, "lastConnectionTime": "2026-10-16T00:00:00Z", "extra": true}

	ft := &fakeT{}
	CheckFlatStructuresAreEqualExcept(ft, expected, actual, "lastConnectionTime")
	if ft.failed {
		t.Errorf("unexpected failure: %s", ft.msg)
	}

	ft = &fakeT{}
	CheckFlatStructuresAreEqualExcept(ft, expected, actual)
	if !ft.failed || !strings.Contains(ft.msg, "lastConnectionTime") {
		t.Errorf("expected failure on lastConnectionTime, got %v %q", ft.failed, ft.msg)
	}
}

func TestResponseAssertTree(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewTwinClient(t, srv).Get("/recordings/481")
	chained := resp.AssertTree("recording", map[string]any{
		"id":     481,
		"tracks": []any{map[string]any{"id": "ignored", "tag": "possum"}},
	}, ".tracks[].id")
	if chained != resp {
		t.Error("expected AssertTree to return the same Response for chaining")
	}
	resp.AssertFlat("", map[string]any{"success": true, "messages": []any{}})
}

// ---------------------------------------------------------------------------
// TwinClient
// ---------------------------------------------------------------------------

func TestNewTwinClientURL(t *testing.T) {
	tc := NewTwinClientURL(t, "http://localhost:8080/")
	if tc.BaseURL != "http://localhost:8080" {
		t.Errorf("expected trailing slash trimmed, got %s", tc.BaseURL)
	}
}

func TestTwinClientRequests(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	tc := NewTwinClient(t, srv)

	resp := tc.Post("/recordings", map[string]string{"type": "thermalRaw"})
	resp.AssertStatus(http.StatusOK).AssertBodyContains("Thanks")
	if id := resp.ID("recordingId"); id != 7 {
		t.Errorf("expected recordingId 7, got %d", id)
	}

	tc.Delete("/recordings/7").AssertStatus(http.StatusNoContent)
}

func TestTwinClientWithToken(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	base := NewTwinClient(t, srv)
	authed := base.WithToken("abc")

	m := authed.DoWithHeaders("GET", "/echo-headers", nil, map[string]string{"X-Custom": "v"}).JSONMap()
	if m["Authorization"] != "Bearer abc" || m["X-Custom"] != "v" {
		t.Errorf("unexpected headers: %+v", m)
	}
	if _, ok := base.Get("/echo-headers").JSONMap()["Authorization"]; ok {
		t.Error("WithToken modified the original client")
	}
}

func TestTwinClientPostRaw(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp := NewTwinClient(t, srv).PostRaw("/echo-body", "text/csv", []byte(";a,b"))
	if got := string(resp.Body); got != "text/csv;a,b" {
		t.Errorf("unexpected echo %q", got)
	}
}

// ---------------------------------------------------------------------------
// AdminClient
// ---------------------------------------------------------------------------

func TestAdminClient(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()
	ac := NewAdminClient(NewTwinClient(t, srv))

	if m := ac.Health().AssertStatus(http.StatusOK).JSONMap(); m["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", m["status"])
	}
	ac.GetState().AssertStatus(http.StatusOK).AssertBodyContains("items")
	ac.LoadState(map[string]any{"key": "value"}).AssertStatus(http.StatusOK).AssertBodyContains("loaded")
	ac.GetState().AssertBodyContains("value")
	ac.Reset().AssertStatus(http.StatusOK).AssertBodyContains("reset")

	ac.InjectFault("/recordings/*", map[string]any{"status_code": 503}).
		AssertStatus(http.StatusOK).
		AssertBodyContains(`"endpoint":"/recordings/*"`)
	ac.Get("/recordings/481").AssertStatus(http.StatusOK) // fault middleware is not mounted on these routes
	ac.RemoveFault("/recordings/*").AssertStatus(http.StatusOK)

	ac.GetRequests().AssertStatus(http.StatusOK).AssertBodyContains(`"path":"/recordings/481"`)
	ac.AdvanceTime("1h").AssertStatus(http.StatusOK).AssertBodyContains("advanced")
	ac.SetConfig(map[string]any{"latency": "1ms"}).AssertStatus(http.StatusOK).AssertBodyContains(`"latency":"1ms"`)
}
