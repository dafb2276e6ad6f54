package viewport

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const autoLiteral = "auto"

// Bound is one edge of the visible distance window. It is either a number of
// meters or unbounded ("auto"). The zero value is unbounded.
type Bound struct {
	v   float64
	set bool
}

// Auto is the unbounded edge.
var Auto = Bound{}

// At returns a bound at v meters.
func At(v float64) Bound {
	return Bound{v: v, set: true}
}

func (b Bound) IsAuto() bool {
	return !b.set
}

// Value returns the numeric bound. ok is false for Auto.
func (b Bound) Value() (v float64, ok bool) {
	return b.v, b.set
}

// Ptr returns nil for Auto, otherwise a pointer to a copy of the value.
func (b Bound) Ptr() *float64 {
	if !b.set {
		return nil
	}
	v := b.v
	return &v
}

func (b Bound) String() string {
	if !b.set {
		return autoLiteral
	}
	return strconv.FormatFloat(b.v, 'f', -1, 64)
}

func (b Bound) finite() bool {
	return !b.set || (!math.IsNaN(b.v) && !math.IsInf(b.v, 0))
}

func (b Bound) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte(`"` + autoLiteral + `"`), nil
	}
	return json.Marshal(b.v)
}

// UnmarshalJSON accepts a number, "auto", null or a numeric string.
// Strings that are not numbers are treated as unbounded.
func (b *Bound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = Auto
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = ParseBound(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = At(v)
	return nil
}

// ParseBound parses the string form of a bound. Anything that is not a finite
// number yields Auto.
func ParseBound(s string) Bound {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, autoLiteral) {
		return Auto
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Auto
	}
	return At(v)
}
