// Package render draws composed series as a self-contained HTML page.
// It is meant for quick checks in a browser, the regular clients render the
// JSON series themselves.
package render

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/mpapenbr/lapviewer-go/pkg/chart"
)

type (
	Option func(*config)
	config struct {
		title      string
		subtitle   string
		width      string
		height     string
		assetsHost string
	}
)

func WithTitle(title, subtitle string) Option {
	return func(c *config) {
		c.title = title
		c.subtitle = subtitle
	}
}

func WithSize(width, height string) Option {
	return func(c *config) {
		c.width = width
		c.height = height
	}
}

// WithAssetsHost sets where the echarts javascript is loaded from.
func WithAssetsHost(host string) Option {
	return func(c *config) {
		c.assetsHost = host
	}
}

// Line writes an HTML line chart of the series. minX and maxX limit the
// visible distance range, nil means unbounded.
//
//nolint:whitespace // can't make both editor and linter happy
func Line(
	w io.Writer,
	g chart.Graph,
	series []chart.Series,
	minX, maxX *float64,
	options ...Option,
) error {
	cfg := &config{
		title:  g.Name,
		width:  "100%",
		height: "400px",
	}
	for _, opt := range options {
		opt(cfg)
	}

	xAxis := opts.XAxis{Type: "value", Name: "Distance (m)", NameLocation: "middle", NameGap: 25}
	if minX != nil {
		xAxis.Min = *minX
	}
	if maxX != nil {
		xAxis.Max = *maxX
	}
	yAxis := opts.YAxis{Type: "value", Name: g.Unit}
	if v, ok := g.YMin.Get(); ok {
		yAxis.Min = v
	}
	if v, ok := g.YMax.Get(); ok {
		yAxis.Max = v
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:  fmt.Sprintf("lapviewer - %s", cfg.title),
			Width:      cfg.width,
			Height:     cfg.height,
			AssetsHost: cfg.assetsHost,
		}),
		charts.WithTitleOpts(opts.Title{Title: cfg.title, Subtitle: cfg.subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(xAxis),
		charts.WithYAxisOpts(yAxis),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	for i := range series {
		s := &series[i]
		data := make([]opts.LineData, 0, len(s.Points))
		for _, p := range s.Points {
			data = append(data, opts.LineData{Value: []interface{}{p.X, p.Y}})
		}
		lineOpts := opts.LineChart{ShowSymbol: opts.Bool(false)}
		if s.Step {
			lineOpts.Step = "end"
		}
		line.AddSeries(s.Label, data,
			charts.WithLineChartOpts(lineOpts),
			charts.WithLineStyleOpts(opts.LineStyle{Color: s.Color}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.Color}),
		)
	}
	return line.Render(w)
}
