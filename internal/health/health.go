// Package health probes the external tools and backends a job depends on.
//
// The same checks back the `videopro doctor` command and the /readyz route
// served next to /metrics while a job runs. /healthz always answers 200.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 10 * time.Second

// maxParallel bounds how many checks run at once.
const maxParallel = 4

// Checker is a named probe. Check returns nil when the dependency is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Status is the outcome of one check.
type Status struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the check passed.
func (s Status) OK() bool { return s.Err == nil }

// Handler runs a fixed set of checkers. Safe for concurrent use.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithTimeout sets the per-check deadline. Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a Handler for checkers.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{checkers: append([]Checker(nil), checkers...), timeout: DefaultTimeout}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Run executes every check concurrently and returns the statuses in checker
// order. A check that outlives its deadline fails with the context error.
func (h *Handler) Run(ctx context.Context) []Status {
	out := make([]Status, len(h.checkers))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, c := range h.checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()
			start := time.Now()
			err := runCheck(cctx, c.Check)
			out[i] = Status{Name: c.Name, Err: err, Elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// runCheck returns when check does or when ctx expires, whichever is first.
func runCheck(ctx context.Context, check func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- check(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err joins the failures in sts, or returns nil when all passed.
func Err(sts []Status) error {
	var errs []error
	for _, s := range sts {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, s.Err))
		}
	}
	return errors.Join(errs...)
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is a liveness probe that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every check passes, 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	sts := h.Run(r.Context())
	res := result{Status: "ok", Checks: make(map[string]string, len(sts))}
	code := http.StatusOK
	for _, s := range sts {
		if s.OK() {
			res.Checks[s.Name] = "ok"
			continue
		}
		res.Checks[s.Name] = "fail: " + s.Err.Error()
		res.Status = "fail"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
