package chart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mpapenbr/lapviewer-go/pkg/viewport"
)

// Domain returns the visible x range of the zoom state. nil means unbounded.
func Domain(z viewport.ZoomState) (minX, maxX *float64) {
	return z.Left.Ptr(), z.Right.Ptr()
}

// Clip trims the points of each series to [minX, maxX]. One point beyond each
// edge is kept so that lines reach the border of the plot. A nil bound does
// not clip. The input is not modified.
func Clip(series []Series, minX, maxX *float64) []Series {
	ret := make([]Series, len(series))
	for i, s := range series {
		ret[i] = s
		ret[i].Points = clipPoints(s.Points, minX, maxX)
	}
	return ret
}

// points are ordered by x
func clipPoints(points []Point, minX, maxX *float64) []Point {
	from, to := 0, len(points)
	if minX != nil {
		for from < len(points) && points[from].X < *minX {
			from++
		}
		if from > 0 {
			from--
		}
	}
	if maxX != nil {
		to = from
		for to < len(points) && points[to].X <= *maxX {
			to++
		}
		if to < len(points) {
			to++
		}
	}
	ret := make([]Point, to-from)
	copy(ret, points[from:to])
	return ret
}

// RGBA converts "#rgb", "#rrggbb", "rgb(r, g, b)" or "rgba(r, g, b, a)" into
// "rgba(r, g, b, opacity)".
func RGBA(color string, opacity float64) (string, error) {
	r, g, b, err := parseColor(strings.TrimSpace(color))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", r, g, b,
		strconv.FormatFloat(opacity, 'f', -1, 64)), nil
}

func parseColor(color string) (r, g, b uint8, err error) {
	switch {
	case strings.HasPrefix(color, "#"):
		hex := color[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return 0, 0, 0, fmt.Errorf("invalid color %q", color)
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid color %q: %w", color, err)
		}
		return uint8(v >> 16), uint8(v >> 8), uint8(v), nil
	case strings.HasPrefix(color, "rgb"):
		open, closing := strings.Index(color, "("), strings.LastIndex(color, ")")
		if open < 0 || closing < open {
			return 0, 0, 0, fmt.Errorf("invalid color %q", color)
		}
		parts := strings.Split(color[open+1:closing], ",")
		if len(parts) < 3 {
			return 0, 0, 0, fmt.Errorf("invalid color %q", color)
		}
		var rgb [3]uint8
		for i := range rgb {
			v, err := strconv.ParseUint(strings.TrimSpace(parts[i]), 10, 8)
			if err != nil {
				return 0, 0, 0, fmt.Errorf("invalid color %q: %w", color, err)
			}
			rgb[i] = uint8(v)
		}
		return rgb[0], rgb[1], rgb[2], nil
	}
	return 0, 0, 0, fmt.Errorf("invalid color %q", color)
}
