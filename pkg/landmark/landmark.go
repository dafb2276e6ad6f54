// Package landmark provides the segments and turns of tracks.
package landmark

import (
	"context"
	"sync"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

// Source looks up the landmarks of a track. Unknown tracks yield nil without
// an error.
type Source interface {
	Get(ctx context.Context, trackID string) (*model.TrackLandmarks, error)
}

// Static is an in-memory Source.
type Static struct {
	mu     sync.RWMutex
	tracks map[string]*model.TrackLandmarks
}

var _ Source = (*Static)(nil)

func NewStatic(tracks map[string]*model.TrackLandmarks) *Static {
	ret := &Static{tracks: make(map[string]*model.TrackLandmarks, len(tracks))}
	ret.Replace(tracks)
	return ret
}

func (s *Static) Get(ctx context.Context, trackID string) (*model.TrackLandmarks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracks[trackID], nil
}

// Replace swaps the whole content.
func (s *Static) Replace(tracks map[string]*model.TrackLandmarks) {
	cp := make(map[string]*model.TrackLandmarks, len(tracks))
	for k, v := range tracks {
		cp[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = cp
}

// Tracks returns the number of known tracks.
func (s *Static) Tracks() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}
