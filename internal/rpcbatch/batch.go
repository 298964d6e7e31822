// Package rpcbatch implements the JSON-RPC 2.0 batch request manager
// (C9): per-client pending queues flushed on size or a per-client
// timer, with futures resolved by id once a batch round-trips.
package rpcbatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

// Request is one JSON-RPC 2.0 request in a batch.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCError mirrors the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is one JSON-RPC 2.0 response in a batch, matched to its
// Request by ID.
type Response struct {
	ID     int64     `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *RPCError `json:"error,omitempty"`
}

// BatchExecutor submits a serialized batch for clientID and returns the
// matching responses. Implementations perform the actual transport
// round-trip (an McpClient.ExecuteBatch, an HTTP POST, ...).
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, clientID string, batch []Request) ([]Response, error)
}

// Future is resolved once a request's batch round-trips.
type Future struct {
	ch chan Result
}

// Result is what a Future delivers: either a result value or an error.
type Result struct {
	Value any
	Err   error
}

func newFuture() *Future { return &Future{ch: make(chan Result, 1)} }

// Wait blocks until the request completes or ctx is done.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case r := <-f.ch:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) complete(r Result) {
	f.ch <- r
}

type pendingEntry struct {
	id     int64
	method string
	params any
	future *Future
}

type clientQueue struct {
	mu      sync.Mutex
	pending []*pendingEntry
	timer   *time.Timer
}

// Config controls flush triggers. Zero values fall back to New's
// defaults.
type Config struct {
	MaxBatchSize   int
	BatchTimeout   time.Duration
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 10
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	return c
}

// Manager aggregates requests per client into JSON-RPC 2.0 batches,
// flushing on size or a per-client timeout. Safe for concurrent use.
type Manager struct {
	executor BatchExecutor
	config   Config
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*clientQueue
	nextID  int64

	statsMu       sync.Mutex
	totalRequests int64
	totalBatches  int64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a batch manager that submits flushed batches through
// executor.
func New(executor BatchExecutor, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		executor: executor,
		config:   cfg.withDefaults(),
		logger:   slog.Default(),
		clients:  make(map[string]*clientQueue),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) queueFor(clientID string) *clientQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.clients[clientID]
	if !ok {
		q = &clientQueue{}
		m.clients[clientID] = q
	}
	return q
}

// AddRequest enqueues method/params for clientID and returns a Future
// resolved once the containing batch flushes. forceImmediate or
// reaching MaxBatchSize starts a flush at once on a new goroutine;
// otherwise a per-client BatchTimeout timer is armed if none is pending
// (later requests do not reset it).
func (m *Manager) AddRequest(ctx context.Context, method string, params any, clientID string, forceImmediate bool) *Future {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	future := newFuture()
	entry := &pendingEntry{id: id, method: method, params: params, future: future}

	q := m.queueFor(clientID)
	q.mu.Lock()
	q.pending = append(q.pending, entry)
	shouldFlush := forceImmediate || len(q.pending) >= m.config.MaxBatchSize
	if shouldFlush {
		if q.timer != nil {
			q.timer.Stop()
			q.timer = nil
		}
	} else if q.timer == nil {
		q.timer = time.AfterFunc(m.config.BatchTimeout, func() {
			m.flushClient(ctx, clientID)
		})
	}
	q.mu.Unlock()

	m.statsMu.Lock()
	m.totalRequests++
	m.statsMu.Unlock()

	if shouldFlush {
		go m.flushClient(ctx, clientID)
	}
	return future
}

// flushClient drains clientID's pending queue and submits it as one
// batch. Every pending future completes with its matching response (or
// the same transport error, if the round-trip itself failed).
func (m *Manager) flushClient(ctx context.Context, clientID string) {
	q := m.queueFor(clientID)

	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	entries := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(entries) == 0 {
		return
	}

	batch := make([]Request, len(entries))
	byID := make(map[int64]*pendingEntry, len(entries))
	for i, e := range entries {
		batch[i] = Request{JSONRPC: "2.0", ID: e.id, Method: e.method, Params: e.params}
		byID[e.id] = e
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.config.RequestTimeout)
	defer cancel()

	responses, err := m.executor.ExecuteBatch(reqCtx, clientID, batch)

	m.statsMu.Lock()
	m.totalBatches++
	m.statsMu.Unlock()

	if err != nil {
		wrapped := rerrors.ServerError("batch execution failed", err)
		for _, e := range entries {
			e.future.complete(Result{Err: wrapped})
		}
		return
	}

	matched := make(map[int64]bool, len(responses))
	for _, resp := range responses {
		e, ok := byID[resp.ID]
		if !ok {
			continue
		}
		matched[resp.ID] = true
		if resp.Error != nil {
			e.future.complete(Result{Err: rerrors.ServerError(resp.Error.Message, nil)})
		} else {
			e.future.complete(Result{Value: resp.Result})
		}
	}
	for id, e := range byID {
		if !matched[id] {
			e.future.complete(Result{Err: rerrors.ServerError("no response for request id", nil)})
		}
	}
}

// Flush drains every client's pending queue immediately.
func (m *Manager) Flush(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			m.flushClient(ctx, id)
		}(id)
	}
	wg.Wait()
}

// Statistics summarizes the manager's activity for monitoring.
type Statistics struct {
	TotalRequests     int64
	TotalBatches      int64
	RegisteredClients int
	PendingRequests   int
	BatchEfficiency   float64
}

// Stats returns a point-in-time snapshot.
func (m *Manager) Stats() Statistics {
	m.statsMu.Lock()
	totalReq, totalBatch := m.totalRequests, m.totalBatches
	m.statsMu.Unlock()

	m.mu.Lock()
	clients := len(m.clients)
	pending := 0
	for _, q := range m.clients {
		q.mu.Lock()
		pending += len(q.pending)
		q.mu.Unlock()
	}
	m.mu.Unlock()

	var batchEfficiency float64
	if totalBatch > 0 {
		batchEfficiency = float64(totalReq) / float64(totalBatch)
	}

	return Statistics{
		TotalRequests:     totalReq,
		TotalBatches:      totalBatch,
		RegisteredClients: clients,
		PendingRequests:   pending,
		BatchEfficiency:   batchEfficiency,
	}
}

// NewCorrelationID returns a process-unique id for correlating a
// request with a response when the transport doesn't otherwise echo
// one (e.g. building Params that embed an idempotency key).
func NewCorrelationID() string {
	return uuid.NewString()
}
