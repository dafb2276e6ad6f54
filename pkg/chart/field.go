package chart

import (
	"fmt"

	"github.com/mpapenbr/lapviewer-go/pkg/model"
)

// Field selects the value of a telemetry point that is plotted on the y axis.
type Field int

const (
	FieldSpeed Field = iota + 1
	FieldThrottle
	FieldBrake
	FieldHandbrake
	FieldGear
	FieldDelta
	FieldLapTime
)

var fieldNames = map[Field]string{
	FieldSpeed:     "speed",
	FieldThrottle:  "throttle",
	FieldBrake:     "brake",
	FieldHandbrake: "handbrake",
	FieldGear:      "gear",
	FieldDelta:     "delta",
	FieldLapTime:   "lapTime",
}

// Value returns the field of p.
func (f Field) Value(p *model.TelemetryPoint) float64 {
	switch f {
	case FieldSpeed:
		return p.Speed
	case FieldThrottle:
		return p.Throttle
	case FieldBrake:
		return p.Brake
	case FieldHandbrake:
		return p.Handbrake
	case FieldGear:
		return float64(p.Gear)
	case FieldDelta:
		return p.Delta
	case FieldLapTime:
		return p.LapTime
	}
	return 0
}

func (f Field) String() string {
	if s, ok := fieldNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

func (f Field) MarshalText() ([]byte, error) {
	if _, ok := fieldNames[f]; !ok {
		return nil, fmt.Errorf("unknown field %d", int(f))
	}
	return []byte(f.String()), nil
}

func (f *Field) UnmarshalText(text []byte) error {
	for k, v := range fieldNames {
		if v == string(text) {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown field %q", string(text))
}
