//nolint:funlen,errcheck // ok for this test code
package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[int]int
	started chan int
	release chan struct{}
	fail    atomic.Bool
	err     error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(map[int]int), err: errors.New("network down")}
}

func (f *fakeFetcher) GetLapData(ctx context.Context, lapID int) (*model.LapTelemetry, error) {
	f.mu.Lock()
	f.calls[lapID]++
	f.mu.Unlock()
	if f.started != nil {
		f.started <- lapID
	}
	if f.release != nil {
		<-f.release
	}
	if f.fail.Load() {
		return nil, f.err
	}
	return &model.LapTelemetry{
		Points: []model.TelemetryPoint{
			{Distance: 0, Speed: 100 + float64(lapID)},
			{Distance: 10, Speed: 110 + float64(lapID)},
		},
	}, nil
}

func (f *fakeFetcher) callsFor(lapID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[lapID]
}

func TestGetTelemetryForLap_concurrentCallersShareFetch(t *testing.T) {
	f := newFakeFetcher()
	f.started = make(chan int, 1)
	f.release = make(chan struct{})
	c := NewCache(WithFetcher(f), WithSessionID("s1"))
	defer c.Close()

	const numCallers = 5
	res := make([]*model.LapTelemetry, numCallers)
	errs := make([]error, numCallers)
	wg := sync.WaitGroup{}
	for i := range numCallers {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			res[idx], errs[idx] = c.GetTelemetryForLap(context.Background(), "s1", 3)
		}(i)
	}
	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, 1, f.callsFor(3))
	for i := range numCallers {
		require.NoError(t, errs[i])
		assert.Equal(t, res[0], res[i])
	}
	// every caller owns its copy
	res[0].Points[0].Speed = -1
	assert.InDelta(t, 103.0, res[1].Points[0].Speed, 0.0001)
}

func TestGetTelemetryForLap_persistsUntilInvalidated(t *testing.T) {
	f := newFakeFetcher()
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()

	first, err := c.GetTelemetryForLap(ctx, "s1", 3)
	require.NoError(t, err)
	second, err := c.GetTelemetryForLap(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.callsFor(3))

	c.Invalidate(ctx, 3)
	_, err = c.GetTelemetryForLap(ctx, "s1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, f.callsFor(3))
}

// two quick requests, one fetch; invalidate; another request fetches again
func TestGetTelemetryForLap_invalidateScenario(t *testing.T) {
	f := newFakeFetcher()
	f.started = make(chan int, 2)
	f.release = make(chan struct{})
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()

	wg := sync.WaitGroup{}
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.GetTelemetryForLap(ctx, "s1", 3)
		}()
	}
	<-f.started
	time.Sleep(20 * time.Millisecond)
	close(f.release)
	wg.Wait()
	assert.Equal(t, 1, f.callsFor(3))

	c.Invalidate(ctx, 3)
	_, err := c.GetTelemetryForLap(ctx, "s1", 3)
	require.NoError(t, err)
	<-f.started
	assert.Equal(t, 2, f.callsFor(3))
}

func TestClearAll_refetchesEveryLap(t *testing.T) {
	f := newFakeFetcher()
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()

	for _, lap := range []int{1, 2} {
		c.GetTelemetryForLap(ctx, "s1", lap)
	}
	assert.Equal(t, []int{1, 2}, c.Cached())
	c.ClearAll(ctx)
	assert.Empty(t, c.Cached())
	for _, lap := range []int{1, 2} {
		c.GetTelemetryForLap(ctx, "s1", lap)
		assert.Equal(t, 2, f.callsFor(lap))
	}
}

func TestClearAll_duringFetch(t *testing.T) {
	f := newFakeFetcher()
	f.started = make(chan int, 2)
	f.release = make(chan struct{})
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()

	done := make(chan error)
	go func() {
		_, err := c.GetTelemetryForLap(ctx, "old", 4)
		done <- err
	}()
	<-f.started
	// session switch while the fetch of the old session is running
	c.ClearAll(ctx)
	close(f.release)
	require.NoError(t, <-done)
	assert.Empty(t, c.Cached(), "result of the cleared fetch must not be cached")

	_, err := c.GetTelemetryForLap(ctx, "new", 4)
	require.NoError(t, err)
	<-f.started
	assert.Equal(t, 2, f.callsFor(4))
	assert.Equal(t, []int{4}, c.Cached())
}

func TestGetTelemetryForLap_failureIsolation(t *testing.T) {
	f := newFakeFetcher()
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()

	_, err := c.GetTelemetryForLap(ctx, "s1", 1)
	require.NoError(t, err)

	f.fail.Store(true)
	_, err = c.GetTelemetryForLap(ctx, "s1", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, f.err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 2, fe.LapID)

	assert.Equal(t, []int{1}, c.Cached(), "failed lap must not be cached")

	// no automatic retry, the next request fetches again
	f.fail.Store(false)
	_, err = c.GetTelemetryForLap(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, f.callsFor(2))
	assert.Equal(t, 1, f.callsFor(1))
}

func TestGetTelemetryForLap_nilDataIsNotFound(t *testing.T) {
	c := NewCache(WithFetcher(FetcherFunc(
		func(ctx context.Context, lapID int) (*model.LapTelemetry, error) {
			return nil, nil
		})))
	defer c.Close()
	_, err := c.GetTelemetryForLap(context.Background(), "s1", 9)
	assert.ErrorIs(t, err, ErrLapNotFound)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestGetTelemetryForLap_sortsPointsByDistance(t *testing.T) {
	c := NewCache(WithFetcher(FetcherFunc(
		func(ctx context.Context, lapID int) (*model.LapTelemetry, error) {
			return &model.LapTelemetry{Points: []model.TelemetryPoint{
				{Distance: 20}, {Distance: 5}, {Distance: 10},
			}}, nil
		})))
	defer c.Close()
	v, err := c.GetTelemetryForLap(context.Background(), "s1", 1)
	require.NoError(t, err)
	got := make([]float64, 0, len(v.Points))
	for _, p := range v.Points {
		got = append(got, p.Distance)
	}
	assert.Equal(t, []float64{5, 10, 20}, got)
}

func TestSnapshot(t *testing.T) {
	f := newFakeFetcher()
	c := NewCache(WithFetcher(f))
	defer c.Close()
	ctx := context.Background()
	for _, lap := range []int{4, 2} {
		c.GetTelemetryForLap(ctx, "s1", lap)
	}

	snap := c.Snapshot(4, 7, 2)
	require.Len(t, snap, 2)
	assert.Equal(t, 4, snap[0].LapID)
	assert.Equal(t, 2, snap[1].LapID)

	snap[0].Telemetry.Points[0].Speed = -1
	again := c.Snapshot(4)
	assert.InDelta(t, 104.0, again[0].Telemetry.Points[0].Speed, 0.0001)
}

func TestSubscribe_receivesCacheEvents(t *testing.T) {
	f := newFakeFetcher()
	c := NewCache(WithFetcher(f), WithSessionID("s1"))
	defer c.Close()
	ctx := context.Background()

	sub := c.Subscribe()
	defer c.CancelSubscription(sub)

	next := func() Event {
		t.Helper()
		select {
		case e := <-sub:
			return e
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
		return Event{}
	}

	c.GetTelemetryForLap(ctx, "s1", 3)
	assert.Equal(t, Event{Type: EventStored, SessionID: "s1", LapID: 3}, next())
	c.Invalidate(ctx, 3)
	assert.Equal(t, Event{Type: EventInvalidated, SessionID: "s1", LapID: 3}, next())
	c.ClearAll(ctx)
	assert.Equal(t, Event{Type: EventCleared, SessionID: "s1"}, next())
}

func TestGetTelemetryForLap_withoutFetcher(t *testing.T) {
	c := NewCache()
	defer c.Close()
	_, err := c.GetTelemetryForLap(context.Background(), "s1", 1)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
