// SPDX-License-Identifier: MIT

// Package health serves the liveness and readiness probes and the startup
// checks run before the daemon accepts traffic.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seedlab/seedlab/internal/log"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the body of /healthz and /readyz. Ready is false as soon as one
// component is unhealthy; degraded components keep the service ready.
type Report struct {
	Status    Status                 `json:"status"`
	Ready     bool                   `json:"ready"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers. Register everything before serving.
type Manager struct {
	version  string
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version}
}

func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// Live answers the liveness probe. Component checks only run when verbose
// is set; the process being able to answer is what liveness means.
func (m *Manager) Live(ctx context.Context, verbose bool) Report {
	if !verbose {
		return Report{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: time.Now()}
	}
	return m.run(ctx)
}

// Ready runs every checker concurrently and aggregates the results.
func (m *Manager) Ready(ctx context.Context) Report {
	return m.run(ctx)
}

func (m *Manager) run(ctx context.Context) Report {
	rep := Report{Status: StatusHealthy, Ready: true, Version: m.version, Timestamp: time.Now()}
	if len(m.checkers) == 0 {
		return rep
	}

	results := make([]CheckResult, len(m.checkers))
	var g errgroup.Group
	for i, c := range m.checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	rep.Checks = make(map[string]CheckResult, len(results))
	for i, res := range results {
		rep.Checks[m.checkers[i].Name()] = res
		switch res.Status {
		case StatusUnhealthy:
			rep.Status = StatusUnhealthy
			rep.Ready = false
		case StatusDegraded:
			if rep.Status == StatusHealthy {
				rep.Status = StatusDegraded
			}
		}
	}
	return rep
}

// ServeHealth always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	rep := m.Live(r.Context(), r.URL.Query().Get("verbose") == "true")
	writeReport(w, r, http.StatusOK, rep)
}

// ServeReady answers 503 while a required component is unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Ready(r.Context())
	code := http.StatusOK
	if !rep.Ready {
		code = http.StatusServiceUnavailable
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Warn().
			Str("event", "readiness.failed").
			Interface("checks", rep.Checks).
			Msg("not ready")
	}
	writeReport(w, r, code, rep)
}

func writeReport(w http.ResponseWriter, r *http.Request, code int, rep Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "health")
		logger.Debug().Err(err).Msg("write health report")
	}
}

// PingChecker adapts a ping function (cache, session store) into a Checker.
// Optional checkers report degraded instead of unhealthy on failure.
type PingChecker struct {
	name     string
	ping     func(ctx context.Context) error
	optional bool
}

// NewPingChecker creates a checker around ping.
func NewPingChecker(name string, ping func(ctx context.Context) error, optional bool) *PingChecker {
	return &PingChecker{name: name, ping: ping, optional: optional}
}

func (c *PingChecker) Name() string {
	return c.name
}

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.ping(ctx); err != nil {
		status := StatusUnhealthy
		if c.optional {
			status = StatusDegraded
		}
		return CheckResult{Status: status, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// NewDBChecker checks the relational store.
func NewDBChecker(db *sql.DB) *PingChecker {
	return NewPingChecker("database", db.PingContext, false)
}

// LastRunChecker checks if the last background job run was successful
type LastRunChecker struct {
	name   string
	maxAge time.Duration

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

// NewLastRunChecker creates a checker for a periodic job expected every maxAge.
func NewLastRunChecker(name string, maxAge time.Duration) *LastRunChecker {
	return &LastRunChecker{name: name, maxAge: maxAge}
}

// Record stores the outcome of one job run.
func (c *LastRunChecker) Record(at time.Time, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRun = at
	c.lastErr = ""
	if err != nil {
		c.lastErr = err.Error()
	}
}

func (c *LastRunChecker) Name() string {
	return c.name
}

func (c *LastRunChecker) Check(ctx context.Context) CheckResult {
	c.mu.Lock()
	lastRun, lastError := c.lastRun, c.lastErr
	c.mu.Unlock()

	if lastRun.IsZero() {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no run yet",
		}
	}

	if lastError != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   lastError,
			Message: "last job run failed",
		}
	}

	if c.maxAge > 0 && time.Since(lastRun) > 2*c.maxAge {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "last successful run is overdue",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last job run successful",
	}
}
