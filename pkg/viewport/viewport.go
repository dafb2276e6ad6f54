package viewport

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/broadcast"
)

var ErrInvalidRange = errors.New("invalid zoom range")

// ZoomState is the visible distance window shared by all charts of a session.
type ZoomState struct {
	Left  Bound `json:"left"`
	Right Bound `json:"right"`
}

// Unbounded is the zoom state showing the whole lap.
var Unbounded = ZoomState{Left: Auto, Right: Auto}

// Validate checks that numeric bounds are finite and that left < right when
// both are numeric.
func (z ZoomState) Validate() error {
	if !z.Left.finite() || !z.Right.finite() {
		return fmt.Errorf("%w: non-finite bound [%s, %s]", ErrInvalidRange, z.Left, z.Right)
	}
	l, lok := z.Left.Value()
	r, rok := z.Right.Value()
	if lok && rok && r <= l {
		return fmt.Errorf("%w: end %s <= start %s", ErrInvalidRange, z.Right, z.Left)
	}
	return nil
}

func (z ZoomState) String() string {
	return fmt.Sprintf("[%s, %s]", z.Left, z.Right)
}

// State is the observable viewport of a session.
type State struct {
	Zoom        ZoomState `json:"zoom"`
	Annotations []string  `json:"annotations"`
	// Seq increases with every change. Subscribers use it to drop stale states.
	Seq uint64 `json:"seq"`
}

func (s State) clone() State {
	s.Annotations = slices.Clone(s.Annotations)
	if s.Annotations == nil {
		s.Annotations = []string{}
	}
	return s
}

type Option func(*Viewport)

// Viewport holds the zoom state and the visible annotations of one analysis
// session. All mutations replace the state as a whole and are published to
// subscribers in Seq order.
type Viewport struct {
	mu        sync.Mutex
	state     State
	sessionID string
	events    chan State
	bcst      broadcast.BroadcastServer[State]
	l         *log.Logger
}

func WithLogger(l *log.Logger) Option {
	return func(v *Viewport) {
		v.l = l
	}
}

func WithSessionID(id string) Option {
	return func(v *Viewport) {
		v.sessionID = id
	}
}

// WithAnnotations sets the annotations visible initially.
func WithAnnotations(names ...string) Option {
	return func(v *Viewport) {
		v.state.Annotations = lo.Uniq(names)
	}
}

func New(opts ...Option) *Viewport {
	ret := &Viewport{
		state:  State{Zoom: Unbounded},
		events: make(chan State, 64),
		l:      log.Default().Named("viewport"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.bcst = broadcast.NewBroadcastServer("viewport."+ret.sessionID, ret.events,
		broadcast.WithLogger[State](ret.l.Named("bcst")),
		broadcast.WithListenerBuffer[State](16))
	return ret
}

// SetZoomRange sets both bounds of the window in one step.
func (v *Viewport) SetZoomRange(start, end float64) error {
	return v.SetZoom(ZoomState{Left: At(start), Right: At(end)})
}

// SetZoom replaces the window. Invalid windows are rejected with
// ErrInvalidRange and leave the state unchanged.
func (v *Viewport) SetZoom(z ZoomState) error {
	if err := z.Validate(); err != nil {
		v.l.Debug("rejecting zoom", log.String("session", v.sessionID),
			log.String("zoom", z.String()), log.ErrorField(err))
		return err
	}
	v.update(func(s *State) {
		s.Zoom = z
	})
	return nil
}

// Reset shows the whole lap.
func (v *Viewport) Reset() {
	v.update(func(s *State) {
		s.Zoom = Unbounded
	})
}

// State returns a consistent snapshot.
func (v *Viewport) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.clone()
}

// Zoom returns the current window.
func (v *Viewport) Zoom() ZoomState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Zoom
}

// SetAnnotations replaces the visible annotations. Duplicates are removed.
func (v *Viewport) SetAnnotations(names []string) {
	v.update(func(s *State) {
		s.Annotations = lo.Uniq(names)
	})
}

// ToggleAnnotation shows a hidden annotation or hides a visible one.
// The return value reports whether the annotation is visible afterwards.
func (v *Viewport) ToggleAnnotation(name string) bool {
	visible := false
	v.update(func(s *State) {
		if slices.Contains(s.Annotations, name) {
			s.Annotations = lo.Without(s.Annotations, name)
		} else {
			s.Annotations = append(slices.Clone(s.Annotations), name)
			visible = true
		}
	})
	return visible
}

func (v *Viewport) Subscribe() <-chan State {
	return v.bcst.Subscribe()
}

func (v *Viewport) CancelSubscription(ch <-chan State) {
	v.bcst.CancelSubscription(ch)
}

func (v *Viewport) Close() {
	v.bcst.Close()
}

// update applies f and publishes the result while holding the lock so that
// events leave in Seq order.
func (v *Viewport) update(f func(s *State)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	f(&v.state)
	v.state.Seq++
	snapshot := v.state.clone()
	v.l.Debug("viewport changed",
		log.String("session", v.sessionID),
		log.String("zoom", snapshot.Zoom.String()),
		log.Uint64("seq", snapshot.Seq))
	select {
	case v.events <- snapshot:
	default:
		v.l.Warn("event queue full, dropping viewport state",
			log.String("session", v.sessionID), log.Uint64("seq", snapshot.Seq))
	}
}
