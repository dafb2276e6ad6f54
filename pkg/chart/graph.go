package chart

import (
	"slices"

	"github.com/aarondl/opt/omit"
	"github.com/samber/lo"
)

// Signal describes one plotted value.
type Signal struct {
	Field Field  `json:"field"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Graph is a chart preset: the signals drawn together and the y axis setup.
type Graph struct {
	Name    string            `json:"name"`
	Signals []Signal          `json:"signals"`
	Unit    string            `json:"unit"`
	Step    bool              `json:"step"`
	YMin    omit.Val[float64] `json:"yMin"`
	YMax    omit.Val[float64] `json:"yMax"`
}

var (
	signalSpeed     = Signal{Field: FieldSpeed, Name: "Speed", Color: "#2196f3"}
	signalThrottle  = Signal{Field: FieldThrottle, Name: "Throttle", Color: "#4caf50"}
	signalBrake     = Signal{Field: FieldBrake, Name: "Brake", Color: "#f44336"}
	signalHandbrake = Signal{Field: FieldHandbrake, Name: "Handbrake", Color: "#ff9800"}
	signalGear      = Signal{Field: FieldGear, Name: "Gear", Color: "#9c27b0"}
	signalDelta     = Signal{Field: FieldDelta, Name: "Delta Time", Color: "#ff4081"}
	signalLapTime   = Signal{Field: FieldLapTime, Name: "Lap Time", Color: "#00bcd4"}
)

var graphs = map[string]Graph{
	"speed": {
		Signals: []Signal{signalSpeed},
		Unit:    "Speed km/h",
		YMin:    omit.From(0.0),
		YMax:    omit.From(250.0),
	},
	"pedals": {
		Signals: []Signal{signalThrottle, signalBrake, signalHandbrake},
		Unit:    "%",
		YMin:    omit.From(0.0),
	},
	"throttle": {
		Signals: []Signal{signalThrottle},
		Unit:    "Throttle %",
		YMin:    omit.From(0.0),
	},
	"brake": {
		Signals: []Signal{signalBrake},
		Unit:    "Brake %",
		YMin:    omit.From(0.0),
	},
	"handbrake": {
		Signals: []Signal{signalHandbrake},
		Unit:    "Handbrake %",
		YMin:    omit.From(0.0),
	},
	"gear": {
		Signals: []Signal{signalGear},
		Unit:    "Gear",
		Step:    true,
		YMin:    omit.From(0.0),
	},
	// delta is signed, no lower limit
	"delta": {
		Signals: []Signal{signalDelta},
		Unit:    "Delta s",
	},
	"lapTime": {
		Signals: []Signal{signalLapTime},
		Unit:    "Time s",
		YMin:    omit.From(0.0),
	},
}

// GraphByName returns a copy of the named preset.
func GraphByName(name string) (Graph, bool) {
	g, ok := graphs[name]
	if !ok {
		return Graph{}, false
	}
	g.Name = name
	g.Signals = slices.Clone(g.Signals)
	return g, true
}

// GraphNames returns the names of all presets, sorted.
func GraphNames() []string {
	ret := lo.Keys(graphs)
	slices.Sort(ret)
	return ret
}
