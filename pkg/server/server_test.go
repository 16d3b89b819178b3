package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/cache"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/pipeline"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

const board = `(kicad_pcb (version 20240108) (generator "pcbnew")
  (layers
    (0 "F.Cu" signal)
    (31 "B.Cu" signal)
    (44 "Edge.Cuts" user))
  (net 0 "")
  (net 1 "SIG")
  (footprint "Connector:Pin" (layer "F.Cu") (at 4 5)
    (property "Reference" "J1")
    (pad "1" thru_hole circle (at 0 0) (size 1.2 1.2) (drill 0.6) (layers "*.Cu" "*.Mask") (net 1 "SIG")))
  (footprint "Connector:Pin" (layer "F.Cu") (at 16 5)
    (property "Reference" "J2")
    (pad "1" thru_hole circle (at 0 0) (size 1.2 1.2) (drill 0.6) (layers "*.Cu" "*.Mask") (net 1 "SIG")))
  (gr_rect (start 0 0) (end 20 10) (stroke (width 0.1) (type default)) (layer "Edge.Cuts"))
)
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(New(pipeline.NewRunner(c, nil), nil, 0).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	resp, err := http.Post(ts.URL+"/route", "application/json", &buf)
	if err != nil {
		t.Fatalf("POST /route: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStacks(t *testing.T) {
	ts := newServer(t)
	resp, err := http.Get(ts.URL + "/stacks")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []StackInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	if diff := cmp.Diff(rules.PresetNames(), names); diff != "" {
		t.Errorf("stacks (-want +got):\n%s", diff)
	}
	for _, s := range got {
		if s.Name == rules.PresetTwoLayer && len(s.Layers) != 2 {
			t.Errorf("2layer layers = %+v", s.Layers)
		}
	}
}

func TestRoute(t *testing.T) {
	ts := newServer(t)
	req := RouteRequest{Board: board, Insert: true}

	for i, wantCached := range []bool{false, true} {
		resp := post(t, ts, req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, resp.StatusCode)
		}
		var got RouteResponse
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Cached != wantCached {
			t.Errorf("call %d: cached = %v, want %v", i, got.Cached, wantCached)
		}
		if got.Stack != rules.PresetTwoLayer || got.Result == nil || got.Result.NetsRouted != 1 {
			t.Errorf("call %d: stack %q result %+v", i, got.Stack, got.Result)
		}
		if !strings.Contains(got.Fragment, "(segment") {
			t.Errorf("call %d: fragment = %q", i, got.Fragment)
		}
		if !strings.Contains(got.Board, got.Fragment[:strings.IndexByte(got.Fragment, '\n')]) {
			t.Errorf("call %d: routes missing from returned board", i)
		}
	}
}

func TestRouteAdaptive(t *testing.T) {
	ts := newServer(t)
	resp := post(t, ts, RouteRequest{Board: board, Stack: pipeline.StackAdaptive})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got RouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got.Attempts) != 1 || !got.Attempts[0].Converged || got.Attempts[0].Stack != rules.PresetTwoLayer {
		t.Errorf("attempts = %+v", got.Attempts)
	}
}

func TestRouteErrors(t *testing.T) {
	ts := newServer(t)
	tests := []struct {
		name string
		body any
		code errors.Code
	}{
		{"malformed json", "{", errors.ErrCodeInvalidInput},
		{"unknown field", `{"board":"x","layers":4}`, errors.ErrCodeInvalidInput},
		{"missing board", RouteRequest{}, errors.ErrCodeInvalidInput},
		{"bad config", RouteRequest{Board: board, Config: "[rules\n"}, errors.ErrCodeParse},
		{"unknown stack", RouteRequest{Board: board, Stack: "3layer"}, errors.ErrCodeInvalidLayer},
		{"not a board", RouteRequest{Board: "(hello)"}, errors.ErrCodeParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var got errorResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.Code != tt.code {
				t.Errorf("code = %s, want %s (%s)", got.Code, tt.code, got.Message)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeParse, http.StatusBadRequest},
		{errors.ErrCodeInvalidVia, http.StatusBadRequest},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := status(tt.code); got != tt.want {
			t.Errorf("status(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
