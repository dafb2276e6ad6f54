// Package postgres reads track landmarks from the track_segment and
// track_turn tables.
package postgres

import (
	"context"
	"fmt"

	"github.com/aarondl/opt/omit"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/lapviewer-go/pkg/landmark"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

type (
	Repository struct {
		conn bob.Executor
	}
	landmarkRow struct {
		ID     string
		Name   string
		StartM float64
		EndM   *float64
	}
)

var _ landmark.Source = (*Repository)(nil)

var tables = map[model.LandmarkKind]string{
	model.LandmarkSegment: "track_segment",
	model.LandmarkTurn:    "track_turn",
}

func New(conn bob.Executor) *Repository {
	return &Repository{conn: conn}
}

// Get returns nil if the track has neither segments nor turns.
//
//nolint:whitespace // can't make both editor and linter happy
func (r *Repository) Get(
	ctx context.Context,
	trackID string,
) (*model.TrackLandmarks, error) {
	segments, err := r.load(ctx, model.LandmarkSegment, trackID)
	if err != nil {
		return nil, err
	}
	turns, err := r.load(ctx, model.LandmarkTurn, trackID)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 && len(turns) == 0 {
		return nil, nil
	}
	return &model.TrackLandmarks{Segments: segments, Turns: turns}, nil
}

// Store replaces the landmarks of a track.
//
//nolint:whitespace // can't make both editor and linter happy
func (r *Repository) Store(
	ctx context.Context,
	trackID string,
	tl *model.TrackLandmarks,
) error {
	for _, kind := range []model.LandmarkKind{model.LandmarkSegment, model.LandmarkTurn} {
		table := tables[kind]
		if _, err := bob.Exec(ctx, r.conn, psql.RawQuery(
			fmt.Sprintf("DELETE FROM %s WHERE track_id = ?", table),
			psql.Arg(trackID))); err != nil {
			return err
		}
		for i, lm := range tl.ByKind(kind) {
			if _, err := bob.Exec(ctx, r.conn, psql.RawQuery(
				fmt.Sprintf(`INSERT INTO %s (track_id, idx, id, name, start_m, end_m)
VALUES (?, ?, ?, ?, ?, ?)`, table),
				psql.Arg(trackID), psql.Arg(i), psql.Arg(lm.ID), psql.Arg(lm.Name),
				psql.Arg(lm.Start), psql.Arg(lm.End))); err != nil {
				return err
			}
		}
	}
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (r *Repository) load(
	ctx context.Context,
	kind model.LandmarkKind,
	trackID string,
) ([]model.Landmark, error) {
	rows, err := bob.All(ctx, r.conn, psql.RawQuery(
		fmt.Sprintf(`SELECT id, name, start_m, end_m FROM %s
WHERE track_id = ? ORDER BY idx`, tables[kind]),
		psql.Arg(trackID)),
		scan.StructMapper[landmarkRow]())
	if err != nil {
		return nil, fmt.Errorf("load %s of track %s: %w", kind, trackID, err)
	}
	ret := make([]model.Landmark, len(rows))
	for i, row := range rows {
		ret[i] = model.Landmark{
			ID:    row.ID,
			Name:  row.Name,
			Start: row.StartM,
			End:   omit.FromPtr(row.EndM),
		}
	}
	return ret, nil
}
