// Package server exposes the router over HTTP.
//
// Endpoints:
//
//	GET  /healthz   liveness probe
//	GET  /stacks    layer stack presets
//	POST /route     route a board, see RouteRequest
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/OpenTraceLab/OpenTraceRoute/pkg/errors"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/pipeline"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/adaptive"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/config"
	"github.com/OpenTraceLab/OpenTraceRoute/pkg/router/rules"
)

// MaxBodyBytes bounds the size of a route request
const MaxBodyBytes = 32 << 20

// Server handles routing requests
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	timeout time.Duration
}

// New creates a server. timeout bounds a single routing run; zero means
// no limit beyond the client connection.
func New(runner *pipeline.Runner, logger *log.Logger, timeout time.Duration) *Server {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{runner: runner, logger: logger, timeout: timeout}
}

// Handler returns the HTTP handler of the service
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stacks", s.handleStacks)
	r.Post("/route", s.handleRoute)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(errors.ErrCodeInternal, err, "listen on %s", addr)
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdown)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

// RouteRequest is the body of POST /route
type RouteRequest struct {
	Board   string `json:"board"`             // .kicad_pcb text
	Config  string `json:"config,omitempty"`  // TOML job configuration
	Stack   string `json:"stack,omitempty"`   // Preset, "board" or "adaptive"
	Rules   string `json:"rules,omitempty"`   // .kicad_dru text
	Insert  bool   `json:"insert,omitempty"`  // Return the board with the routes inserted
	Refresh bool   `json:"refresh,omitempty"` // Ignore cached results
}

// RouteResponse is the body of a successful POST /route
type RouteResponse struct {
	Stack    string         `json:"stack"`
	Cached   bool           `json:"cached"`
	Fragment string         `json:"fragment"`
	Board    string         `json:"board,omitempty"`
	Result   *router.Result `json:"result"`
	Attempts []AttemptInfo  `json:"attempts,omitempty"`
	Skipped  []string       `json:"skipped_rules,omitempty"`
}

// AttemptInfo reports one stack of an adaptive run
type AttemptInfo struct {
	Stack     string `json:"stack"`
	Converged bool   `json:"converged"`
	Routed    int    `json:"routed"`
	Requested int    `json:"requested"`
	Overflow  int    `json:"overflow"`
	Unrouted  int    `json:"unrouted"`
	Millis    int64  `json:"duration_ms"`
	Error     string `json:"error,omitempty"`
}

func attemptInfo(a adaptive.Attempt) AttemptInfo {
	info := AttemptInfo{
		Stack:     a.Stack,
		Converged: a.Converged,
		Routed:    a.Routed,
		Requested: a.Requested,
		Overflow:  a.Overflow,
		Unrouted:  a.Unrouted,
		Millis:    a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		info.Error = a.Err.Error()
	}
	return info
}

// StackInfo describes one layer stack preset
type StackInfo struct {
	Name   string      `json:"name"`
	Layers []LayerInfo `json:"layers"`
}

// LayerInfo describes one copper layer
type LayerInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	PlaneNet string `json:"plane_net,omitempty"`
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStacks(w http.ResponseWriter, r *http.Request) {
	var out []StackInfo
	for _, name := range rules.PresetNames() {
		stack := rules.MustPreset(name)
		info := StackInfo{Name: name}
		for _, l := range stack.Layers() {
			info.Layers = append(info.Layers, LayerInfo{Name: l.Name, Type: l.Type.String(), PlaneNet: l.PlaneNet})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding request"))
		return
	}
	if req.Board == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "board is required"))
		return
	}
	cfg := config.Default()
	if req.Config != "" {
		var err error
		if cfg, err = config.Parse([]byte(req.Config)); err != nil {
			s.writeError(w, err)
			return
		}
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := s.runner.Run(ctx, pipeline.Request{
		Board:   []byte(req.Board),
		Config:  cfg,
		Stack:   req.Stack,
		Rules:   req.Rules,
		Refresh: req.Refresh,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := RouteResponse{
		Stack:    out.Entry.Stack,
		Cached:   out.Cached,
		Fragment: out.Entry.Fragment,
		Result:   out.Result(),
	}
	for _, a := range out.Attempts {
		resp.Attempts = append(resp.Attempts, attemptInfo(a))
	}
	if out.Rules != nil {
		resp.Skipped = out.Rules.Skipped
	}
	if req.Insert {
		if resp.Board, err = out.Inserted(); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// status maps error codes to HTTP status codes
func status(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidLayer, errors.ErrCodeInvalidVia,
		errors.ErrCodeInvalidInput, errors.ErrCodeParse:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	st := status(code)
	if st >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, st, errorResponse{Code: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
