package session

import (
	"errors"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
	"github.com/mpapenbr/lapviewer-go/pkg/viewport"
)

var ErrTooManySessions = errors.New("too many sessions")

type (
	Option   func(*Registry)
	Registry struct {
		mu          sync.Mutex
		sessions    map[string]*Session
		fetcher     telemetry.Fetcher
		maxSessions int
		l           *log.Logger
	}
)

func WithFetcher(f telemetry.Fetcher) Option {
	return func(r *Registry) {
		r.fetcher = f
	}
}

// WithMaxSessions limits the number of sessions Open creates. 0 means no limit.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.l = l
	}
}

func NewRegistry(opts ...Option) *Registry {
	ret := &Registry{
		sessions: make(map[string]*Session),
		l:        log.Default().Named("session"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Get returns the session, creating it on first use.
func (r *Registry) Get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	return r.create(id)
}

// Open is like Get but refuses to create a session once the configured
// maximum is reached.
func (r *Registry) Open(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		r.l.Warn("session limit reached",
			log.String("session", id), log.Int("max", r.maxSessions))
		return nil, ErrTooManySessions
	}
	return r.create(id), nil
}

// needs r.mu
func (r *Registry) create(id string) *Session {
	r.l.Info("creating session", log.String("session", id))
	s := &Session{
		ID: id,
		Cache: telemetry.NewCache(
			telemetry.WithSessionID(id),
			telemetry.WithFetcher(r.fetcher),
			telemetry.WithLogger(r.l.Named("cache"))),
		Viewport: viewport.New(
			viewport.WithSessionID(id),
			viewport.WithLogger(r.l.Named("viewport"))),
		l: r.l,
	}
	r.sessions[id] = s
	return s
}

// Lookup returns an existing session.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets the session.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		r.l.Info("removing session", log.String("session", id))
		s.Close()
	}
	return ok
}

// IDs returns the ids of all sessions, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ret := lo.Keys(r.sessions)
	slices.Sort(ret)
	return ret
}

func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
