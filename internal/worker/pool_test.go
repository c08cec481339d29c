package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	assert.Equal(t, 5, NewPool(5, 0).Workers())
	assert.Equal(t, 1, NewPool(0, 0).Workers())
	assert.Equal(t, 1, NewPool(-3, 0).Workers())
}

func TestRun_PreservesOrder(t *testing.T) {
	p := NewPool(3, 0)
	tasks := make([]Task[int], 10)
	for i := range tasks {
		i := i
		tasks[i] = func(ctx context.Context) int {
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return i * i
		}
	}

	got := Run(context.Background(), p, tasks)
	require.Len(t, got, 10)
	for i, v := range got {
		assert.Equal(t, i*i, v)
	}
}

func TestRun_BoundsConcurrency(t *testing.T) {
	p := NewPool(2, 0)
	var active, peak int32
	tasks := make([]Task[struct{}], 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) struct{} {
			n := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return struct{}{}
		}
	}

	Run(context.Background(), p, tasks)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRun_PerTaskTimeout(t *testing.T) {
	p := NewPool(2, 20*time.Millisecond)
	tasks := []Task[error]{
		func(ctx context.Context) error {
			select {
			case <-time.After(time.Second):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
		func(ctx context.Context) error { return nil },
	}

	start := time.Now()
	got := Run(context.Background(), p, tasks)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.True(t, errors.Is(got[0], context.DeadlineExceeded))
	assert.NoError(t, got[1])
}

func TestRun_Empty(t *testing.T) {
	got := Run[int](context.Background(), NewPool(4, 0), nil)
	assert.Empty(t, got)
}
