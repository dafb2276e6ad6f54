package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/chart"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
	"github.com/mpapenbr/lapviewer-go/pkg/viewport"
)

var ErrUnknownGraph = errors.New("unknown graph")

// Session bundles the telemetry cache and the viewport of one analysis
// session. Both are shared by every client showing the session.
type Session struct {
	ID       string
	Cache    *telemetry.Cache
	Viewport *viewport.Viewport
	l        *log.Logger
}

//nolint:tagliatelle // json api
type ChartData struct {
	Graph  chart.Graph        `json:"graph"`
	Series []chart.Series     `json:"series"`
	Zoom   viewport.ZoomState `json:"zoom"`
	Seq    uint64             `json:"seq"`
	MinX   *float64           `json:"minX"`
	MaxX   *float64           `json:"maxX"`
}

type chartConfig struct {
	clip bool
}

type ChartOption func(*chartConfig)

// WithClip trims the series to the current zoom window.
func WithClip(clip bool) ChartOption {
	return func(c *chartConfig) {
		c.clip = clip
	}
}

// Laps returns the telemetry of the laps, loading missing ones concurrently.
// The result keeps the order of the first occurrence of each id in lapIDs.
func (s *Session) Laps(ctx context.Context, lapIDs []int) ([]telemetry.LapEntry, error) {
	lapIDs = lo.Uniq(lapIDs)
	ret := make([]telemetry.LapEntry, len(lapIDs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range lapIDs {
		g.Go(func() error {
			data, err := s.Cache.GetTelemetryForLap(gCtx, s.ID, id)
			if err != nil {
				return err
			}
			ret[i] = telemetry.LapEntry{LapID: id, Telemetry: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Chart composes the named graph for the laps and attaches the current zoom
// window.
//
//nolint:whitespace // can't make both editor and linter happy
func (s *Session) Chart(
	ctx context.Context,
	graph string,
	lapIDs []int,
	opts ...ChartOption,
) (*ChartData, error) {
	cfg := &chartConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	g, ok := chart.GraphByName(graph)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGraph, graph)
	}
	laps, err := s.Laps(ctx, lapIDs)
	if err != nil {
		return nil, err
	}
	state := s.Viewport.State()
	minX, maxX := chart.Domain(state.Zoom)
	series := chart.ComposeGraph(laps, g)
	if cfg.clip {
		series = chart.Clip(series, minX, maxX)
	}
	s.l.Debug("composed chart",
		log.String("session", s.ID),
		log.String("graph", graph),
		log.Any("laps", lapIDs),
		log.Int("series", len(series)))
	return &ChartData{
		Graph:  g,
		Series: series,
		Zoom:   state.Zoom,
		Seq:    state.Seq,
		MinX:   minX,
		MaxX:   maxX,
	}, nil
}

func (s *Session) Close() {
	s.Cache.Close()
	s.Viewport.Close()
}
