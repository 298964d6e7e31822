package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleTaskRunsAndResolvesFuture(t *testing.T) {
	s := New(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	f := s.ScheduleTask(func(ctx context.Context) (any, error) { return 42, nil }, 0, "default")
	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestInFlightNeverExceedsMaxConcurrency(t *testing.T) {
	const maxConcurrency = 3
	s := New(maxConcurrency)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	var maxObserved int64
	var current int64
	release := make(chan struct{})

	futures := make([]*Future, 20)
	for i := range futures {
		futures[i] = s.ScheduleTask(func(ctx context.Context) (any, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&maxObserved)
				if n <= old || atomic.CompareAndSwapInt64(&maxObserved, old, n) {
					break
				}
			}
			<-release
			atomic.AddInt64(&current, -1)
			return nil, nil
		}, 0, "default")
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	for _, f := range futures {
		_, err := f.Wait(context.Background())
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&maxObserved), int64(maxConcurrency))
}

func TestPriorityOrderingHighestFirst(t *testing.T) {
	s := New(1)

	var order []int
	block := make(chan struct{})
	first := s.ScheduleTask(func(ctx context.Context) (any, error) {
		<-block
		return nil, nil
	}, 0, "default")

	// All three are enqueued before Start, so the heap alone decides the
	// order: high, then low, then first (which blocks until block closes).
	low := s.ScheduleTask(func(ctx context.Context) (any, error) {
		order = append(order, 1)
		return nil, nil
	}, 1, "default")
	high := s.ScheduleTask(func(ctx context.Context) (any, error) {
		order = append(order, 2)
		return nil, nil
	}, 10, "default")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	close(block)
	_, err := first.Wait(context.Background())
	require.NoError(t, err)
	_, err = high.Wait(context.Background())
	require.NoError(t, err)
	_, err = low.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, order, 2)
	assert.Equal(t, []int{2, 1}, order, "higher priority task runs before lower priority")
}

func TestCancelTasksByCategoryOnlyAffectsQueuedTasks(t *testing.T) {
	s := New(1)

	block := make(chan struct{})
	inFlight := s.ScheduleTask(func(ctx context.Context) (any, error) {
		<-block
		return "ran", nil
	}, 0, "keep")

	queued := s.ScheduleTask(func(ctx context.Context) (any, error) {
		return "should not run", nil
	}, 0, "cancel-me")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	n := s.CancelTasksByCategory("cancel-me")
	assert.Equal(t, 1, n)

	close(block)
	v, err := inFlight.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ran", v)

	_, err = queued.Wait(context.Background())
	assert.ErrorIs(t, err, ErrTaskCancelled)
}
