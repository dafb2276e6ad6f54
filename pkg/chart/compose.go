package chart

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
)

var fadePerLap = decimal.RequireFromString("0.3")

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Series is the plot data of one signal of one lap.
//
//nolint:tagliatelle // json api
type Series struct {
	LapID     int     `json:"lapId"`
	Field     Field   `json:"field"`
	Label     string  `json:"label"`
	BaseColor string  `json:"baseColor"`
	Color     string  `json:"color"`
	Opacity   float64 `json:"opacity"`
	Step      bool    `json:"step"`
	Points    []Point `json:"points"`
}

type composeConfig struct {
	step bool
}

type ComposeOption func(*composeConfig)

// WithStep marks the series to be drawn as step lines.
func WithStep(step bool) ComposeOption {
	return func(c *composeConfig) {
		c.step = step
	}
}

// Opacity returns the fade of the lap at lapIndex: 1, 0.7, 0.4, 0.1, then 0.
func Opacity(lapIndex int) float64 {
	ret := decimal.NewFromInt(1).Sub(fadePerLap.Mul(decimal.NewFromInt(int64(lapIndex))))
	if ret.IsNegative() {
		return 0
	}
	return ret.InexactFloat64()
}

// Compose builds one series per lap and signal. Laps keep the given order,
// the signals of a lap keep the order of signals. x is the distance, y the
// signal's field. The telemetry of laps is not modified.
//
//nolint:whitespace // can't make both editor and linter happy
func Compose(
	laps []telemetry.LapEntry,
	signals []Signal,
	opts ...ComposeOption,
) []Series {
	cfg := &composeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	ret := make([]Series, 0, len(laps)*len(signals))
	for lapIndex, lap := range laps {
		opacity := Opacity(lapIndex)
		for _, sig := range signals {
			s := Series{
				LapID:     lap.LapID,
				Field:     sig.Field,
				Label:     fmt.Sprintf("%s - Lap %d", sig.Name, lap.LapID),
				BaseColor: sig.Color,
				Color:     fadeColor(sig.Color, opacity),
				Opacity:   opacity,
				Step:      cfg.step,
				Points:    []Point{},
			}
			if lap.Telemetry != nil {
				s.Points = lo.Map(lap.Telemetry.Points,
					func(p model.TelemetryPoint, _ int) Point {
						return Point{X: p.Distance, Y: sig.Field.Value(&p)}
					})
			}
			ret = append(ret, s)
		}
	}
	return ret
}

// ComposeGraph composes the signals of a preset.
func ComposeGraph(laps []telemetry.LapEntry, g Graph) []Series {
	return Compose(laps, g.Signals, WithStep(g.Step))
}

// fadeColor falls back to the base color if it cannot be parsed
func fadeColor(color string, opacity float64) string {
	if ret, err := RGBA(color, opacity); err == nil {
		return ret
	}
	return color
}
