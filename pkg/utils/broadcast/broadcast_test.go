package broadcast

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func receive[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	var zero T
	return zero, false
}

func TestBroadcast_fanOut(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", source)
	defer b.Close()

	first := b.Subscribe()
	second := b.Subscribe()
	source <- 42

	v, ok := receive(t, first)
	assert.Assert(t, ok)
	assert.Equal(t, v, 42)
	v, ok = receive(t, second)
	assert.Assert(t, ok)
	assert.Equal(t, v, 42)
}

func TestBroadcast_cancelSubscription(t *testing.T) {
	source := make(chan string)
	b := NewBroadcastServer("test", source)
	defer b.Close()

	sub := b.Subscribe()
	b.CancelSubscription(sub)
	_, ok := receive(t, sub)
	assert.Assert(t, !ok, "channel should be closed")
}

func TestBroadcast_closeClosesListeners(t *testing.T) {
	source := make(chan string)
	b := NewBroadcastServer("test", source)
	sub := b.Subscribe()
	b.Close()
	_, ok := receive(t, sub)
	assert.Assert(t, !ok, "channel should be closed")

	// subscribing after close yields a closed channel
	late := b.Subscribe()
	_, ok = receive(t, late)
	assert.Assert(t, !ok)
}

func TestBroadcast_slowListenerIsSkipped(t *testing.T) {
	source := make(chan int)
	b := NewBroadcastServer("test", source,
		WithListenerBuffer[int](0),
		WithSendTimeout[int](10*time.Millisecond))
	defer b.Close()

	slow := b.Subscribe()
	fast := b.Subscribe()
	done := make(chan int)
	go func() {
		v := <-fast
		done <- v
	}()
	source <- 1
	assert.Equal(t, <-done, 1)

	// slow never read the first message, the next one is delivered normally
	go func() { source <- 2 }()
	v, ok := receive(t, slow)
	assert.Assert(t, ok)
	assert.Equal(t, v, 2)
}
