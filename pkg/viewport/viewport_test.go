//nolint:funlen,errcheck // ok for this test code
package viewport

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestSetZoomRange(t *testing.T) {
	v := New()
	defer v.Close()

	assert.NilError(t, v.SetZoomRange(100, 250))
	s := v.State()
	assert.Equal(t, s.Zoom, ZoomState{Left: At(100), Right: At(250)})
	assert.Equal(t, s.Seq, uint64(1))
}

func TestSetZoomRange_invalid(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
	}{
		{"end equals start", 100, 100},
		{"end before start", 200, 100},
		{"nan", math.NaN(), 100},
		{"inf", 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			defer v.Close()
			assert.NilError(t, v.SetZoomRange(10, 20))

			err := v.SetZoomRange(tt.start, tt.end)
			assert.Assert(t, errors.Is(err, ErrInvalidRange))
			s := v.State()
			assert.Equal(t, s.Zoom, ZoomState{Left: At(10), Right: At(20)})
			assert.Equal(t, s.Seq, uint64(1))
		})
	}
}

func TestSetZoom_autoBounds(t *testing.T) {
	v := New()
	defer v.Close()

	assert.NilError(t, v.SetZoom(ZoomState{Left: At(300), Right: Auto}))
	assert.Equal(t, v.Zoom(), ZoomState{Left: At(300), Right: Auto})

	v.Reset()
	assert.Equal(t, v.Zoom(), Unbounded)
	assert.Equal(t, v.State().Seq, uint64(2))
}

// concurrent writers must never produce a window mixing bounds of two calls
func TestSetZoomRange_atomic(t *testing.T) {
	v := New()
	defer v.Close()

	const writers = 8
	const rounds = 200
	wg := sync.WaitGroup{}
	for w := range writers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range rounds {
				start := float64(w*1000 + i)
				v.SetZoomRange(start, start+float64(w+1))
			}
		}(w)
	}
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stop:
				return
			default:
			}
			z := v.Zoom()
			l, lok := z.Left.Value()
			r, rok := z.Right.Value()
			if !lok || !rok {
				continue
			}
			w := int(l) / 1000
			if r-l != float64(w+1) {
				t.Errorf("mixed window %s", z)
				return
			}
		}
	}()
	wg.Wait()
	close(stop)
	<-readerDone
	assert.Equal(t, v.State().Seq, uint64(writers*rounds))
}

func TestAnnotations(t *testing.T) {
	v := New(WithAnnotations("apex", "apex", "brake"))
	defer v.Close()
	assert.DeepEqual(t, v.State().Annotations, []string{"apex", "brake"})

	assert.Assert(t, !v.ToggleAnnotation("apex"))
	assert.DeepEqual(t, v.State().Annotations, []string{"brake"})
	assert.Assert(t, v.ToggleAnnotation("apex"))
	assert.DeepEqual(t, v.State().Annotations, []string{"brake", "apex"})

	v.SetAnnotations(nil)
	assert.Assert(t, is.Len(v.State().Annotations, 0))

	// snapshots are copies
	v.SetAnnotations([]string{"a"})
	s := v.State()
	s.Annotations[0] = "changed"
	assert.DeepEqual(t, v.State().Annotations, []string{"a"})
}

func TestSubscribe_receivesStatesInOrder(t *testing.T) {
	v := New(WithSessionID("s1"))
	defer v.Close()
	sub := v.Subscribe()
	defer v.CancelSubscription(sub)

	assert.NilError(t, v.SetZoomRange(1, 2))
	v.ToggleAnnotation("x")
	v.Reset()

	var got []State
	for range 3 {
		select {
		case s := <-sub:
			got = append(got, s)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for state")
		}
	}
	assert.Equal(t, got[0].Zoom, ZoomState{Left: At(1), Right: At(2)})
	assert.DeepEqual(t, got[1].Annotations, []string{"x"})
	assert.Equal(t, got[2].Zoom, Unbounded)
	for i, s := range got {
		assert.Equal(t, s.Seq, uint64(i+1))
	}
}

func TestBound_json(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Bound
	}{
		{"number", `12.5`, At(12.5)},
		{"auto", `"auto"`, Auto},
		{"null", `null`, Auto},
		{"numeric string", `"120.5"`, At(120.5)},
		{"other string", `"dataMin"`, Auto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bound
			assert.NilError(t, json.Unmarshal([]byte(tt.in), &b))
			assert.Equal(t, b, tt.want)
		})
	}

	data, err := json.Marshal(ZoomState{Left: At(500), Right: Auto})
	assert.NilError(t, err)
	assert.Equal(t, string(data), `{"left":500,"right":"auto"}`)
}

func TestBound_unmarshalRejectsGarbage(t *testing.T) {
	var b Bound
	assert.Assert(t, json.Unmarshal([]byte(`{}`), &b) != nil)
}
