// Package health implements the MCP health monitor (C14): per-client
// retrying health probes with rolling history, plus an aggregated
// system pseudo-component and overall worst-of status.
package health

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/aman-cerp/ragcore/internal/mcpclient"
)

// Status is a component's health state, ordered worst-to-best for
// overall-status aggregation.
type Status string

const (
	Unhealthy Status = "unhealthy"
	Degraded  Status = "degraded"
	Healthy   Status = "healthy"
	Unknown   Status = "unknown"
)

// severity ranks Status worst-first so Worst(a, b) picks correctly.
var severity = map[Status]int{Unhealthy: 0, Degraded: 1, Healthy: 2, Unknown: 3}

// Worst returns whichever of a, b is worse, per `unhealthy > degraded
// > healthy > unknown`.
func Worst(a, b Status) Status {
	if severity[a] <= severity[b] {
		return a
	}
	return b
}

// Config controls probe behavior.
type Config struct {
	Timeout              time.Duration
	MaxRetries           int
	RetryDelay           time.Duration
	IncludeSystemMetrics bool
	ExcludeComponents    map[string]bool
	CheckAuthentication  bool
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	return c
}

// ComponentResult is one component's health check outcome.
type ComponentResult struct {
	Status         Status
	ResponseTimeMs int64
	Capabilities   map[string]any
	Error          string
	CheckedAt      time.Time
}

// Report is the result of a full PerformHealthCheck call.
type Report struct {
	Overall    Status
	Components map[string]ComponentResult
}

// AuthChecker reports whether a client currently has a valid
// authenticated session, consumed when Config.CheckAuthentication is
// set.
type AuthChecker interface {
	HasValidAuth(clientID string) bool
}

type clientHistory struct {
	entries []ComponentResult
}

const historyLimit = 100

// Monitor runs health checks across a fixed set of registered MCP
// clients.
type Monitor struct {
	config  Config
	clients map[string]mcpclient.McpClient
	auth    AuthChecker
	started time.Time
	nowFn   func() time.Time

	mu      sync.Mutex
	history map[string]*clientHistory
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithAuthChecker wires authentication-state checking into the health
// report when Config.CheckAuthentication is set.
func WithAuthChecker(checker AuthChecker) Option {
	return func(m *Monitor) { m.auth = checker }
}

// WithClock overrides the monitor's clock (tests only).
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.nowFn = now }
}

// New creates a health monitor over clients.
func New(clients map[string]mcpclient.McpClient, cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		config:  cfg.withDefaults(),
		clients: clients,
		started: time.Now(),
		nowFn:   time.Now,
		history: make(map[string]*clientHistory),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PerformHealthCheck probes clientIDs (or every registered client, if
// nil) and returns an aggregated Report. includeSystemMetrics
// overrides the monitor's configured default when true.
func (m *Monitor) PerformHealthCheck(ctx context.Context, clientIDs []string, includeSystemMetrics bool) Report {
	if clientIDs == nil {
		for id := range m.clients {
			clientIDs = append(clientIDs, id)
		}
	}

	report := Report{Overall: Healthy, Components: make(map[string]ComponentResult)}

	for _, id := range clientIDs {
		result := m.checkComponent(ctx, id)
		report.Components[id] = result
		report.Overall = Worst(report.Overall, result.Status)
		m.recordHistory(id, result)
	}

	if includeSystemMetrics || m.config.IncludeSystemMetrics {
		sys := m.systemComponent(clientIDs, report.Components)
		report.Components["system"] = sys
		report.Overall = Worst(report.Overall, sys.Status)
	}

	return report
}

func (m *Monitor) checkComponent(ctx context.Context, clientID string) ComponentResult {
	if m.config.ExcludeComponents[clientID] {
		return ComponentResult{Status: Unknown, Error: "component excluded from health checks", CheckedAt: m.nowFn()}
	}

	client, ok := m.clients[clientID]
	if !ok {
		return ComponentResult{Status: Unknown, Error: "client is not registered", CheckedAt: m.nowFn()}
	}

	var lastErr error
	for attempt := 0; attempt <= m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(m.config.RetryDelay)
		}

		probeCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
		start := m.nowFn()
		tools, err := client.ListTools(probeCtx)
		elapsed := m.nowFn().Sub(start)
		cancel()

		if err == nil {
			result := ComponentResult{
				Status:         Healthy,
				ResponseTimeMs: elapsed.Milliseconds(),
				Capabilities:   map[string]any{"tool_count": len(tools)},
				CheckedAt:      m.nowFn(),
			}
			if m.config.CheckAuthentication && m.auth != nil && !m.auth.HasValidAuth(clientID) {
				result.Status = Degraded
				result.Error = "client is not authenticated"
			}
			return result
		}
		lastErr = err
	}

	return ComponentResult{Status: Unhealthy, Error: lastErr.Error(), CheckedAt: m.nowFn()}
}

func (m *Monitor) systemComponent(checked []string, results map[string]ComponentResult) ComponentResult {
	healthy := 0
	for _, id := range checked {
		if results[id].Status == Healthy {
			healthy++
		}
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return ComponentResult{
		Status: Healthy,
		Capabilities: map[string]any{
			"registered_clients": len(m.clients),
			"healthy_clients":    healthy,
			"memory_usage":       memStats.Alloc,
			"uptime":             m.Uptime(),
		},
		CheckedAt: m.nowFn(),
	}
}

func (m *Monitor) recordHistory(clientID string, result ComponentResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[clientID]
	if !ok {
		h = &clientHistory{}
		m.history[clientID] = h
	}
	h.entries = append(h.entries, result)
	if len(h.entries) > historyLimit {
		h.entries = h.entries[len(h.entries)-historyLimit:]
	}
}

// History returns clientID's rolling health-check history, oldest
// first, bounded to the last historyLimit entries.
func (m *Monitor) History(clientID string) []ComponentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[clientID]
	if !ok {
		return nil
	}
	out := make([]ComponentResult, len(h.entries))
	copy(out, h.entries)
	return out
}

// Uptime returns how long this Monitor has been running.
func (m *Monitor) Uptime() time.Duration {
	return m.nowFn().Sub(m.started)
}
