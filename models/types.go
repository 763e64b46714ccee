package models

import (
	"time"

	"github.com/golang/geo/s2"
)

// Coordinate is a WGS84 point, produced by a map click or a geocoder
// match and immutable afterwards.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate is a real point on the globe
// (latitude in [-90, 90], longitude in [-180, 180]).
func (c Coordinate) Valid() bool {
	return s2.LatLngFromDegrees(c.Latitude, c.Longitude).IsValid()
}

// DefaultCoordinate is where the heatmap view lands when no selection
// was ever handed off.
var DefaultCoordinate = Coordinate{Latitude: 11.0168, Longitude: 76.9558}

// TimestampContext carries the date and time tokens the prediction
// service expects. It is computed fresh for every query, never cached.
type TimestampContext struct {
	Date string // YYYYMMDD
	Time string // HH:MM
}

func NewTimestampContext(now time.Time) TimestampContext {
	return TimestampContext{
		Date: now.Format("20060102"),
		Time: now.Format("15:04"),
	}
}

// PredictionResult is the settled outcome of one point prediction
// query. Exactly one of Fields or Err is set.
type PredictionResult struct {
	Fields map[string]float64
	Err    string
}

func (r PredictionResult) Failed() bool { return r.Err != "" }

// HeatmapState tracks the heatmap query independently of the
// prediction, since the two settle in any order.
type HeatmapState int

const (
	HeatmapAbsent HeatmapState = iota
	HeatmapReady
	HeatmapFailed
)

// HeatmapResult holds the areal heatmap outcome. Image is the
// service's opaque encoded payload and is never decoded here.
type HeatmapResult struct {
	State HeatmapState
	Image string
	Err   string
}

// Interaction bundles the state tied to one map click. Exactly one is
// active at a time; a new click replaces it wholesale. Generation is a
// monotonically increasing tag so completion handlers can cheaply test
// whether they are still current.
type Interaction struct {
	Generation uint64
	Coordinate Coordinate
	Prediction *PredictionResult
	Heatmap    HeatmapResult
}
