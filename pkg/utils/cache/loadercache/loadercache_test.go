//nolint:funlen,errcheck // ok for this test code
package loadercache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapviewer-go/pkg/utils/cache"
)

type sample struct {
	Value string
}

// countingLoader returns a loader that counts its calls. If release is not nil
// the loader blocks until release is closed (or receives a value).
func countingLoader(
	calls *atomic.Int32,
	started chan<- int,
	release <-chan struct{},
) LoaderFunc[int, sample] {
	return func(ctx context.Context, key int) (*sample, error) {
		calls.Add(1)
		if started != nil {
			started <- key
		}
		if release != nil {
			<-release
		}
		return &sample{Value: "v"}, nil
	}
}

func TestGet_coalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	started := make(chan int, 1)
	release := make(chan struct{})
	c := New(WithLoader(countingLoader(&calls, started, release)))

	const numCallers = 10
	results := make([]*sample, numCallers)
	errs := make([]error, numCallers)
	wg := sync.WaitGroup{}
	for i := range numCallers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = c.Get(context.Background(), 3)
		}(i)
	}
	<-started
	// give the other callers a chance to join the running load
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range numCallers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestGet_returnsStoredEntry(t *testing.T) {
	var calls atomic.Int32
	c := New(WithLoader(countingLoader(&calls, nil, nil)))
	first, err := c.Get(context.Background(), 1)
	require.NoError(t, err)
	second, err := c.Get(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, first, second)
	v, ok := c.Peek(1)
	assert.True(t, ok)
	assert.Same(t, first, v)
}

func TestGet_withoutLoader(t *testing.T) {
	c := New[int, sample]()
	_, err := c.Get(context.Background(), 1)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestInvalidate_triggersReload(t *testing.T) {
	var calls atomic.Int32
	var invalidated []int
	c := New(
		WithLoader(countingLoader(&calls, nil, nil)),
		WithOnInvalidate[int, sample](func(k int) { invalidated = append(invalidated, k) }),
	)
	ctx := context.Background()
	c.Get(ctx, 1)
	c.Get(ctx, 2)
	c.Invalidate(ctx, 1)

	_, ok := c.Peek(1)
	assert.False(t, ok)
	_, ok = c.Peek(2)
	assert.True(t, ok)

	c.Get(ctx, 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []int{1}, invalidated)
}

func TestInvalidateAll_triggersReload(t *testing.T) {
	var calls atomic.Int32
	cleared := 0
	c := New(
		WithLoader(countingLoader(&calls, nil, nil)),
		WithOnInvalidateAll[int, sample](func() { cleared++ }),
	)
	ctx := context.Background()
	for _, k := range []int{1, 2, 3} {
		c.Get(ctx, k)
	}
	c.InvalidateAll(ctx)
	assert.Empty(t, c.Keys())
	for _, k := range []int{1, 2, 3} {
		c.Get(ctx, k)
	}
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, 1, cleared)
}

func TestGet_errorReachesAllWaitersAndIsNotCached(t *testing.T) {
	errLoad := errors.New("boom")
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	fail := atomic.Bool{}
	c := New(WithLoader[int, sample](func(ctx context.Context, key int) (*sample, error) {
		calls.Add(1)
		if fail.Load() {
			started <- struct{}{}
			<-release
			return nil, errLoad
		}
		return &sample{Value: "ok"}, nil
	}))
	ctx := context.Background()
	c.Get(ctx, 5) // prime another key to check isolation below
	fail.Store(true)
	calls.Store(0)

	wg := sync.WaitGroup{}
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = c.Get(ctx, 7)
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, err := range errs {
		assert.ErrorIs(t, err, errLoad)
	}
	_, ok := c.Peek(7)
	assert.False(t, ok)
	_, ok = c.Peek(5)
	assert.True(t, ok, "entry of other key must survive")

	fail.Store(false)
	v, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "ok", v.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidate_duringLoadDiscardsResult(t *testing.T) {
	var calls atomic.Int32
	started := make(chan int, 2)
	release := make(chan struct{})
	c := New(WithLoader(countingLoader(&calls, started, release)))
	ctx := context.Background()

	done := make(chan *sample)
	go func() {
		v, _ := c.Get(ctx, 1)
		done <- v
	}()
	<-started
	c.Invalidate(ctx, 1)
	close(release)
	v := <-done
	assert.NotNil(t, v, "original caller still gets its result")

	_, ok := c.Peek(1)
	assert.False(t, ok, "invalidated load must not populate the cache")

	// release is closed, the next load completes immediately
	_, err := c.Get(ctx, 1)
	require.NoError(t, err)
	<-started
	assert.Equal(t, int32(2), calls.Load())
}

func TestInvalidateAll_duringLoadDiscardsResult(t *testing.T) {
	var calls atomic.Int32
	started := make(chan int, 2)
	release := make(chan struct{})
	c := New(WithLoader(countingLoader(&calls, started, release)))
	ctx := context.Background()

	done := make(chan *sample)
	go func() {
		v, _ := c.Get(ctx, 1)
		done <- v
	}()
	<-started
	c.InvalidateAll(ctx)
	close(release)
	v := <-done
	assert.NotNil(t, v, "original caller still gets its result")

	_, ok := c.Peek(1)
	assert.False(t, ok, "load started before InvalidateAll must not populate the cache")
	assert.Empty(t, c.Keys())

	_, err := c.Get(ctx, 1)
	require.NoError(t, err)
	<-started
	assert.Equal(t, int32(2), calls.Load())
	_, ok = c.Peek(1)
	assert.True(t, ok)
}

func TestInvalidateAll_newGetDoesNotJoinStaleLoad(t *testing.T) {
	var calls atomic.Int32
	started := make(chan int, 2)
	release := make(chan struct{})
	c := New(WithLoader(countingLoader(&calls, started, release)))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.Get(ctx, 1)
	}()
	<-started
	c.InvalidateAll(ctx)
	go func() {
		defer wg.Done()
		c.Get(ctx, 1)
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Get after InvalidateAll joined the stale load")
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(2), calls.Load())
	_, ok := c.Peek(1)
	assert.True(t, ok, "load started after InvalidateAll is stored")
}

func TestGet_callerCancelDoesNotAbortLoad(t *testing.T) {
	var calls atomic.Int32
	started := make(chan int, 1)
	release := make(chan struct{})
	c := New(WithLoader(countingLoader(&calls, started, release)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		_, err := c.Get(ctx, 1)
		errCh <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	other := make(chan *sample)
	go func() {
		v, _ := c.Get(context.Background(), 1)
		other <- v
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.NotNil(t, <-other)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOnStore(t *testing.T) {
	var calls atomic.Int32
	stored := make(map[int]*sample)
	c := New(
		WithLoader(countingLoader(&calls, nil, nil)),
		WithOnStore(func(k int, v *sample) { stored[k] = v }),
		WithKeyFunc[int, sample](func(k int) string { return fmt.Sprintf("lap-%d", k) }),
	)
	v, err := c.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Same(t, v, stored[4])
}
