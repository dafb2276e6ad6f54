package model

// TelemetryPoint is a single sample of a lap, ordered by Distance within the lap.
//
//nolint:tagliatelle // matches the paddock payload
type TelemetryPoint struct {
	Distance  float64 `json:"distance"`  // meters since start/finish
	Speed     float64 `json:"speed"`     // km/h
	Throttle  float64 `json:"throttle"`  // 0-100
	Brake     float64 `json:"brake"`     // 0-100
	Handbrake float64 `json:"handbrake"` // 0-100
	Gear      int     `json:"gear"`
	Delta     float64 `json:"delta"`   // seconds vs. reference lap
	LapTime   float64 `json:"lapTime"` // seconds elapsed
	X         float64 `json:"x"`       // map position, valid if MapDataAvailable
	Y         float64 `json:"y"`
}

// LapTelemetry is the cached telemetry of one lap.
//
//nolint:tagliatelle // matches the paddock payload
type LapTelemetry struct {
	Points           []TelemetryPoint `json:"points"`
	MapDataAvailable bool             `json:"mapDataAvailable"`
}

// Clone returns a deep copy. Points are values, so copying the slice is enough.
func (l *LapTelemetry) Clone() *LapTelemetry {
	if l == nil {
		return nil
	}
	ret := &LapTelemetry{
		MapDataAvailable: l.MapDataAvailable,
		Points:           make([]TelemetryPoint, len(l.Points)),
	}
	copy(ret.Points, l.Points)
	return ret
}

// Length returns the distance covered by the recorded points.
func (l *LapTelemetry) Length() float64 {
	if l == nil || len(l.Points) == 0 {
		return 0
	}
	return l.Points[len(l.Points)-1].Distance - l.Points[0].Distance
}

// LastLapTime returns the lap time of the last sample (0 if there are none).
func (l *LapTelemetry) LastLapTime() float64 {
	if l == nil || len(l.Points) == 0 {
		return 0
	}
	return l.Points[len(l.Points)-1].LapTime
}
