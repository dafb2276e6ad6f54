// Package postgres reads lap telemetry from the telemetry_point table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

const (
	lapSQL    = `SELECT id, map_data_available FROM lap WHERE id = ?`
	pointsSQL = `
SELECT distance, speed, throttle, brake, handbrake, gear, delta, lap_time, x, y
FROM telemetry_point
WHERE lap_id = ?
ORDER BY distance, seq`
	lapsOfSessionSQL = `SELECT id FROM lap WHERE session_id = ? ORDER BY id`
)

type (
	Fetcher struct {
		conn bob.Executor
		l    *log.Logger
	}
	lapRow struct {
		ID               int
		MapDataAvailable bool
	}
	pointRow struct {
		Distance  float64
		Speed     float64
		Throttle  float64
		Brake     float64
		Handbrake float64
		Gear      int
		Delta     float64
		LapTime   float64
		X         float64
		Y         float64
	}
)

var _ telemetry.Fetcher = (*Fetcher)(nil)

func New(conn bob.Executor) *Fetcher {
	return &Fetcher{conn: conn, l: log.Default().Named("fetch.postgres")}
}

//nolint:whitespace // can't make both editor and linter happy
func (f *Fetcher) GetLapData(
	ctx context.Context,
	lapID int,
) (*model.LapTelemetry, error) {
	lap, err := bob.One(ctx, f.conn,
		psql.RawQuery(lapSQL, psql.Arg(lapID)),
		scan.StructMapper[lapRow]())
	if err != nil {
		if isNoRows(err) {
			return nil, telemetry.ErrLapNotFound
		}
		return nil, fmt.Errorf("load lap %d: %w", lapID, err)
	}
	rows, err := bob.All(ctx, f.conn,
		psql.RawQuery(pointsSQL, psql.Arg(lapID)),
		scan.StructMapper[pointRow]())
	if err != nil {
		return nil, fmt.Errorf("load points of lap %d: %w", lapID, err)
	}
	f.l.Debug("loaded lap", log.Int("lap", lapID), log.Int("points", len(rows)))

	ret := &model.LapTelemetry{
		MapDataAvailable: lap.MapDataAvailable,
		Points:           make([]model.TelemetryPoint, len(rows)),
	}
	for i := range rows {
		r := &rows[i]
		ret.Points[i] = model.TelemetryPoint{
			Distance:  r.Distance,
			Speed:     r.Speed,
			Throttle:  r.Throttle,
			Brake:     r.Brake,
			Handbrake: r.Handbrake,
			Gear:      r.Gear,
			Delta:     r.Delta,
			LapTime:   r.LapTime,
			X:         r.X,
			Y:         r.Y,
		}
	}
	return ret, nil
}

// LapsOfSession returns the lap ids recorded for the session.
func (f *Fetcher) LapsOfSession(ctx context.Context, sessionID string) ([]int, error) {
	rows, err := bob.All(ctx, f.conn,
		psql.RawQuery(lapsOfSessionSQL, psql.Arg(sessionID)),
		scan.SingleColumnMapper[int])
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Store replaces the telemetry of a lap.
//
//nolint:whitespace // can't make both editor and linter happy
func (f *Fetcher) Store(
	ctx context.Context,
	sessionID string,
	lapID int,
	data *model.LapTelemetry,
) error {
	if _, err := bob.Exec(ctx, f.conn, psql.RawQuery(`
INSERT INTO lap (id, session_id, map_data_available) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE
SET session_id = EXCLUDED.session_id, map_data_available = EXCLUDED.map_data_available`,
		psql.Arg(lapID), psql.Arg(sessionID), psql.Arg(data.MapDataAvailable))); err != nil {
		return err
	}
	if _, err := bob.Exec(ctx, f.conn, psql.RawQuery(
		`DELETE FROM telemetry_point WHERE lap_id = ?`, psql.Arg(lapID))); err != nil {
		return err
	}
	for i := range data.Points {
		p := &data.Points[i]
		if _, err := bob.Exec(ctx, f.conn, psql.RawQuery(`
INSERT INTO telemetry_point
  (lap_id, seq, distance, speed, throttle, brake, handbrake, gear, delta, lap_time, x, y)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			psql.Arg(lapID), psql.Arg(i), psql.Arg(p.Distance), psql.Arg(p.Speed),
			psql.Arg(p.Throttle), psql.Arg(p.Brake), psql.Arg(p.Handbrake),
			psql.Arg(p.Gear), psql.Arg(p.Delta), psql.Arg(p.LapTime),
			psql.Arg(p.X), psql.Arg(p.Y))); err != nil {
			return err
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
