package viewport

import (
	"errors"
	"fmt"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

var ErrLandmarkNotFound = errors.New("landmark not found")

// RangeSetter is the zoom path used by landmark selection.
type RangeSetter interface {
	SetZoomRange(start, end float64) error
}

var _ RangeSetter = (*Viewport)(nil)

// SelectSegment zooms to the segment at index. Missing landmarks are a no-op.
//
//nolint:whitespace // can't make both editor and linter happy
func SelectSegment(
	v RangeSetter,
	landmarks *model.TrackLandmarks,
	index int,
) error {
	return SelectByIndex(v, landmarks, model.LandmarkSegment, index)
}

// SelectTurn zooms to the turn at index. Missing landmarks are a no-op.
func SelectTurn(v RangeSetter, landmarks *model.TrackLandmarks, index int) error {
	return SelectByIndex(v, landmarks, model.LandmarkTurn, index)
}

//nolint:whitespace // can't make both editor and linter happy
func SelectByIndex(
	v RangeSetter,
	landmarks *model.TrackLandmarks,
	kind model.LandmarkKind,
	index int,
) error {
	if landmarks == nil {
		return nil
	}
	items := landmarks.ByKind(kind)
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %s %d", ErrLandmarkNotFound, kind, index)
	}
	return SelectLandmark(v, kind, items[index])
}

// SelectLandmark zooms to [start, end]. A missing end is replaced by the
// default length of kind.
func SelectLandmark(v RangeSetter, kind model.LandmarkKind, lm model.Landmark) error {
	start, end := lm.Range(kind)
	if err := v.SetZoomRange(start, end); err != nil {
		return fmt.Errorf("%s %q: %w", kind, lm.Name, err)
	}
	return nil
}
