package model

import "github.com/aarondl/opt/omit"

type LandmarkKind string

const (
	LandmarkSegment LandmarkKind = "segment"
	LandmarkTurn    LandmarkKind = "turn"
)

// default extent of a landmark without an explicit end (meters)
const (
	DefaultSegmentLength = 100.0
	DefaultTurnLength    = 50.0
)

type Landmark struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Start float64           `json:"start"`
	End   omit.Val[float64] `json:"end"`
}

type TrackLandmarks struct {
	Segments []Landmark `json:"segments"`
	Turns    []Landmark `json:"turns"`
}

// DefaultLength returns the extent used when a landmark of this kind has no end.
func (k LandmarkKind) DefaultLength() float64 {
	if k == LandmarkTurn {
		return DefaultTurnLength
	}
	return DefaultSegmentLength
}

func (k LandmarkKind) Valid() bool {
	return k == LandmarkSegment || k == LandmarkTurn
}

// Range returns [start, end]. A missing end is replaced by start plus the
// default length of kind.
func (l Landmark) Range(kind LandmarkKind) (start, end float64) {
	return l.Start, l.End.GetOr(l.Start + kind.DefaultLength())
}

// ByKind returns the landmarks of the given kind.
func (t *TrackLandmarks) ByKind(kind LandmarkKind) []Landmark {
	if t == nil {
		return nil
	}
	switch kind {
	case LandmarkSegment:
		return t.Segments
	case LandmarkTurn:
		return t.Turns
	}
	return nil
}
