// Package capability implements the MCP capability discovery/update
// manager (C13): per-client capability probing, an event stream for
// capability changes, and validated capability updates.
package capability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
	"github.com/aman-cerp/ragcore/internal/mcpclient"
)

// SupportedVersions is the set of protocol versions this manager
// recognizes.
var SupportedVersions = []string{"2025-03-26"}

// EventType names the kind of change a CapabilityEvent reports.
type EventType string

const (
	Enabled  EventType = "enabled"
	Disabled EventType = "disabled"
	Updated  EventType = "updated"
)

// Capability is one named, versioned feature a client exposes.
type Capability struct {
	Type          string
	Name          string
	Version       string
	Enabled       bool
	Configuration map[string]any
	LastUpdated   time.Time
}

// CapabilityEvent reports a single capability change.
type CapabilityEvent struct {
	Type           EventType
	ClientID       string
	CapabilityName string
	Data           Capability
	Timestamp      time.Time
}

// UpdateRequest is the input to UpdateCapabilities.
type UpdateRequest struct {
	ClientID      string
	Name          string
	Type          string
	Version       string
	Configuration map[string]any
}

type clientRecord struct {
	capabilities map[string]Capability
}

// Manager tracks per-client capabilities, probing clients on
// registration and broadcasting every change over its event stream.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*clientRecord
	history []CapabilityEvent

	events chan CapabilityEvent
	reqSeq int64
	nowFn  func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager's clock (tests only).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFn = now }
}

// New creates a capability manager. Events is a buffered channel
// consumers subscribe to via Events(); callback delivery order
// mirrors the order changes were made.
func New(opts ...Option) *Manager {
	m := &Manager{
		clients: make(map[string]*clientRecord),
		events:  make(chan CapabilityEvent, 256),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the manager's capability-change event stream.
func (m *Manager) Events() <-chan CapabilityEvent {
	return m.events
}

func (m *Manager) emit(ev CapabilityEvent) {
	ev.Timestamp = m.nowFn()
	m.mu.Lock()
	m.history = append(m.history, ev)
	m.mu.Unlock()
	select {
	case m.events <- ev:
	default:
		// A full buffer drops this event from the stream rather than
		// blocking the caller that triggered it; history still has it.
	}
}

// RegisterClient probes client's tools/prompts/resources concurrently
// (a single probe's failure doesn't block recording the others),
// records the tools, prompts and resources capabilities (a failed
// probe is recorded with a count of 0) plus a synthetic
// protocol_versioning capability, and emits an Enabled event per
// recorded capability.
func (m *Manager) RegisterClient(ctx context.Context, clientID string, client mcpclient.McpClient) error {
	var (
		tools     []mcpclient.Tool
		prompts   []mcpclient.Prompt
		resources []mcpclient.Resource
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := client.ListTools(gctx)
		if err == nil {
			tools = t
		}
		return nil
	})
	g.Go(func() error {
		p, err := client.ListPrompts(gctx)
		if err == nil {
			prompts = p
		}
		return nil
	})
	g.Go(func() error {
		r, err := client.ListResources(gctx)
		if err == nil {
			resources = r
		}
		return nil
	})
	_ = g.Wait()

	now := m.nowFn()
	caps := make(map[string]Capability)
	caps["tools"] = Capability{
		Type: "tools", Name: "tools", Version: SupportedVersions[0], Enabled: true,
		Configuration: map[string]any{"tool_count": len(tools)}, LastUpdated: now,
	}
	caps["prompts"] = Capability{
		Type: "prompts", Name: "prompts", Version: SupportedVersions[0], Enabled: true,
		Configuration: map[string]any{"prompt_count": len(prompts)}, LastUpdated: now,
	}
	caps["resources"] = Capability{
		Type: "resources", Name: "resources", Version: SupportedVersions[0], Enabled: true,
		Configuration: map[string]any{"resource_count": len(resources)}, LastUpdated: now,
	}
	caps["protocol_versioning"] = Capability{
		Type: "protocol_versioning", Name: "protocol_versioning", Version: SupportedVersions[0], Enabled: true,
		Configuration: map[string]any{"supported_versions": SupportedVersions}, LastUpdated: now,
	}

	m.mu.Lock()
	m.clients[clientID] = &clientRecord{capabilities: caps}
	m.mu.Unlock()

	for name, c := range caps {
		m.emit(CapabilityEvent{Type: Enabled, ClientID: clientID, CapabilityName: name, Data: c})
	}
	return nil
}

// UpdateCapabilities validates req and, on success, merges it into the
// client's capability map, appends an Updated event, and returns the
// merged Capability.
func (m *Manager) UpdateCapabilities(req UpdateRequest) (Capability, error) {
	if !isSupportedVersion(req.Version) {
		return Capability{}, rerrors.ValidationError("version", "Unsupported capability version", nil)
	}
	if v, ok := req.Configuration["max_batch_size"]; ok {
		n, ok := toInt(v)
		if !ok || n < 1 || n > 100 {
			return Capability{}, rerrors.ValidationError("max_batch_size", "Invalid max_batch_size", nil)
		}
	}

	m.mu.Lock()
	rec, ok := m.clients[req.ClientID]
	if !ok {
		rec = &clientRecord{capabilities: make(map[string]Capability)}
		m.clients[req.ClientID] = rec
	}
	existing := rec.capabilities[req.Name]
	merged := Capability{
		Type:          coalesce(req.Type, existing.Type),
		Name:          req.Name,
		Version:       req.Version,
		Enabled:       true,
		Configuration: mergeConfig(existing.Configuration, req.Configuration),
		LastUpdated:   m.nowFn(),
	}
	rec.capabilities[req.Name] = merged
	m.mu.Unlock()

	m.emit(CapabilityEvent{Type: Updated, ClientID: req.ClientID, CapabilityName: req.Name, Data: merged})
	return merged, nil
}

// EnableCapability marks clientID's named capability enabled, emitting
// an Enabled event if it changed state.
func (m *Manager) EnableCapability(clientID, name string) error {
	return m.setEnabled(clientID, name, true, Enabled)
}

// DisableCapability marks clientID's named capability disabled,
// emitting a Disabled event if it changed state.
func (m *Manager) DisableCapability(clientID, name string) error {
	return m.setEnabled(clientID, name, false, Disabled)
}

func (m *Manager) setEnabled(clientID, name string, enabled bool, evType EventType) error {
	m.mu.Lock()
	rec, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return rerrors.ResourceNotFoundError("client", clientID, "client is not registered")
	}
	c, ok := rec.capabilities[name]
	if !ok {
		m.mu.Unlock()
		return rerrors.ResourceNotFoundError("capability", name, "capability is not registered for this client")
	}
	changed := c.Enabled != enabled
	c.Enabled = enabled
	c.LastUpdated = m.nowFn()
	rec.capabilities[name] = c
	m.mu.Unlock()

	if changed {
		m.emit(CapabilityEvent{Type: evType, ClientID: clientID, CapabilityName: name, Data: c})
	}
	return nil
}

// RefreshAllCapabilities re-probes every registered client.
func (m *Manager) RefreshAllCapabilities(ctx context.Context, clients map[string]mcpclient.McpClient) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		client, ok := clients[id]
		if !ok {
			continue
		}
		_ = m.RegisterClient(ctx, id, client)
	}
}

// GetAllCapabilities returns a snapshot of every registered client's
// capability map.
func (m *Manager) GetAllCapabilities() map[string]map[string]Capability {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]Capability, len(m.clients))
	for id, rec := range m.clients {
		copyMap := make(map[string]Capability, len(rec.capabilities))
		for name, c := range rec.capabilities {
			copyMap[name] = c
		}
		out[id] = copyMap
	}
	return out
}

// Statistics summarizes capability counts across all clients.
type Statistics struct {
	ByType   map[string]int
	Enabled  int
	Disabled int
}

// GetCapabilityStatistics aggregates counts by type and by
// enabled/disabled across every registered client.
func (m *Manager) GetCapabilityStatistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{ByType: make(map[string]int)}
	for _, rec := range m.clients {
		for _, c := range rec.capabilities {
			stats.ByType[c.Type]++
			if c.Enabled {
				stats.Enabled++
			} else {
				stats.Disabled++
			}
		}
	}
	return stats
}

// GenerateRequestID returns a request id of the form "cap_<n>",
// numbered monotonically per Manager.
func (m *Manager) GenerateRequestID() string {
	n := atomic.AddInt64(&m.reqSeq, 1)
	return fmt.Sprintf("cap_%d", n)
}

// NewEventCorrelationID returns a uuid suitable for correlating a
// capability event with the request that triggered it.
func NewEventCorrelationID() string {
	return uuid.NewString()
}

func isSupportedVersion(v string) bool {
	for _, sv := range SupportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func coalesce(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func mergeConfig(base, update map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}
