// Package scheduler implements the priority task scheduler (C8): a
// max-heap of pending tasks gated by a maxConcurrency counting
// semaphore, with FIFO tie-breaking at equal priority and
// category-scoped cancellation of queued (not in-flight) work.
package scheduler

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrTaskCancelled is the error every queued task of a cancelled
// category completes with. In-flight tasks are never cancelled.
var ErrTaskCancelled = errorsCancelled{}

type errorsCancelled struct{}

func (errorsCancelled) Error() string { return "task cancelled" }

// Func is the work a scheduled task performs.
type Func func(ctx context.Context) (any, error)

// Result is delivered on a task's Future once it completes.
type Result struct {
	Value any
	Err   error
}

// Future is resolved exactly once, either by the scheduler running the
// task or by category cancellation.
type Future struct {
	ch chan Result
}

func newFuture() *Future {
	return &Future{ch: make(chan Result, 1)}
}

// Wait blocks until the task completes or ctx is done.
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

type task struct {
	fn       Func
	priority int
	category string
	seq      int64
	future   *Future
}

// taskHeap orders by priority desc, then sequence asc (FIFO at equal
// priority), per spec.md §4.8.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(*task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler runs tasks with a priority queue and a concurrency cap.
// Safe for concurrent use once Start has been called.
type Scheduler struct {
	maxConcurrency int
	logger         *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending taskHeap
	nextSeq int64
	closed  bool

	inFlight  int64
	sem       chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the scheduler's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a scheduler allowing up to maxConcurrency tasks in flight
// at once. maxConcurrency <= 0 is treated as 1.
func New(maxConcurrency int, opts ...Option) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	s := &Scheduler{
		maxConcurrency: maxConcurrency,
		logger:         slog.Default(),
		sem:            make(chan struct{}, maxConcurrency),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleTask enqueues fn at the given priority/category and returns a
// Future resolved when it completes (or is cancelled by category).
func (s *Scheduler) ScheduleTask(fn Func, priority int, category string) *Future {
	f := newFuture()
	s.mu.Lock()
	t := &task{fn: fn, priority: priority, category: category, seq: s.nextSeq, future: f}
	s.nextSeq++
	heap.Push(&s.pending, t)
	s.mu.Unlock()
	s.cond.Signal()
	return f
}

// Start begins draining the queue, dispatching up to maxConcurrency
// tasks concurrently. Start is idempotent; subsequent calls are no-ops.
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go func() {
			<-ctx.Done()
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.cond.Broadcast()
		}()
		s.wg.Add(1)
		go s.drain(ctx)
	})
}

func (s *Scheduler) drain(ctx context.Context) {
	defer s.wg.Done()
	for {
		// Take a slot before popping, so a task waiting for one is still
		// in pending and can be cancelled by category.
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		s.mu.Lock()
		for len(s.pending) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.pending) == 0 {
			s.mu.Unlock()
			<-s.sem
			return
		}
		t := heap.Pop(&s.pending).(*task)
		s.mu.Unlock()

		if ctx.Err() != nil {
			<-s.sem
			t.future.complete(Result{Err: ctx.Err()})
			return
		}

		atomic.AddInt64(&s.inFlight, 1)
		s.wg.Add(1)
		go func(t *task) {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer atomic.AddInt64(&s.inFlight, -1)

			v, err := t.fn(ctx)
			if err != nil {
				s.logger.Warn("scheduled task failed", "category", t.category, "error", err)
			}
			t.future.complete(Result{Value: v, Err: err})
		}(t)
	}
}

// Stop signals the drain loop to exit once the queue empties, without
// cancelling in-flight work, and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
	s.wg.Wait()
}

// InFlight returns the current count of tasks executing concurrently,
// which never exceeds maxConcurrency (spec invariant 7).
func (s *Scheduler) InFlight() int {
	return int(atomic.LoadInt64(&s.inFlight))
}

// Pending returns the number of tasks still queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// CancelTasksByCategory completes every still-queued task of category
// with ErrTaskCancelled. In-flight tasks of that category are
// unaffected and run to completion.
func (s *Scheduler) CancelTasksByCategory(category string) int {
	s.mu.Lock()
	var remaining taskHeap
	var cancelled []*task
	for _, t := range s.pending {
		if t.category == category {
			cancelled = append(cancelled, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	heap.Init(&remaining)
	s.pending = remaining
	s.mu.Unlock()

	for _, t := range cancelled {
		t.future.complete(Result{Err: ErrTaskCancelled})
	}
	return len(cancelled)
}
