package fabric

import (
	"container/list"
	"context"
	"sync"
	"time"

	rerrors "github.com/aman-cerp/ragcore/internal/errors"
)

// Factory creates a new service instance on demand.
type Factory func(ctx context.Context) (any, error)

type waiter struct {
	ch chan any
}

type servicePool struct {
	factory   Factory
	maxSize   int
	created   int
	idle      []any
	waitQueue *list.List // of *waiter
}

// Pool bounds the number of simultaneously-held instances per service
// id, queuing callers past the bound until one is released.
type Pool struct {
	mu       sync.Mutex
	services map[string]*servicePool
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{services: make(map[string]*servicePool)}
}

// RegisterService registers serviceID with factory and the maximum
// number of instances that may be held concurrently. maxSize <= 0 is
// treated as 1.
func (p *Pool) RegisterService(serviceID string, factory Factory, maxSize int) {
	if maxSize <= 0 {
		maxSize = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[serviceID] = &servicePool{
		factory:   factory,
		maxSize:   maxSize,
		waitQueue: list.New(),
	}
}

// GetService returns an instance of serviceID: an idle one if
// available, a newly-created one if under maxSize, or waits up to
// timeout for one to be released. timeout <= 0 waits indefinitely
// (bounded by ctx).
func (p *Pool) GetService(ctx context.Context, serviceID string, timeout time.Duration) (any, error) {
	p.mu.Lock()
	sp, ok := p.services[serviceID]
	if !ok {
		p.mu.Unlock()
		return nil, rerrors.ResourceNotFoundError("service", serviceID, "service is not registered with the pool")
	}

	if n := len(sp.idle); n > 0 {
		inst := sp.idle[n-1]
		sp.idle = sp.idle[:n-1]
		p.mu.Unlock()
		return inst, nil
	}

	if sp.created < sp.maxSize {
		sp.created++
		p.mu.Unlock()
		inst, err := sp.factory(ctx)
		if err != nil {
			p.mu.Lock()
			sp.created--
			p.mu.Unlock()
			return nil, rerrors.ServerError("failed to create pooled service instance", err)
		}
		return inst, nil
	}

	w := &waiter{ch: make(chan any, 1)}
	elem := sp.waitQueue.PushBack(w)
	p.mu.Unlock()

	waitCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case inst := <-w.ch:
		return inst, nil
	case <-waitCtx.Done():
		p.mu.Lock()
		sp.waitQueue.Remove(elem)
		p.mu.Unlock()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, rerrors.TimeoutError(timeout, "timed out waiting for pooled service instance", waitCtx.Err())
	}
}

// ReleaseService returns instance to serviceID's pool, handing it
// directly to the oldest waiter if one is queued.
func (p *Pool) ReleaseService(serviceID string, instance any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.services[serviceID]
	if !ok {
		return
	}
	if front := sp.waitQueue.Front(); front != nil {
		sp.waitQueue.Remove(front)
		front.Value.(*waiter).ch <- instance
		return
	}
	sp.idle = append(sp.idle, instance)
}

// Stats reports serviceID's current in-use and idle instance counts.
func (p *Pool) Stats(serviceID string) (inUse, idle, waiting int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sp, ok := p.services[serviceID]
	if !ok {
		return 0, 0, 0
	}
	return sp.created - len(sp.idle), len(sp.idle), sp.waitQueue.Len()
}
