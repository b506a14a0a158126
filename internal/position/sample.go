// Package position defines the position sample published on the positioning channel.
package position

import (
	"fmt"
	"math"
	"time"

	"cloudpico-positioning/internal/geo"
)

// Reading is one instantaneous instrument reading.
type Reading struct {
	Latitude        float64 // degree
	Longitude       float64 // degree
	Height          float64 // meters
	Roll            float64 // degree
	Pitch           float64 // degree
	Heading         float64 // degree
	GForceMagnitude float64 // m/s^2
}

// Sample is a reading plus its derived offsets and capture time.
// Fields are read-only once NewSample returns.
type Sample struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Height          float64   `json:"height"`
	Roll            float64   `json:"roll"`
	Pitch           float64   `json:"pitch"`
	Heading         float64   `json:"heading"`
	GForceMagnitude float64   `json:"gForceMagnitude"`
	EastOffset      float64   `json:"east_offset"`  // ft
	NorthOffset     float64   `json:"north_offset"` // ft
	TotalOffset     float64   `json:"total_offset"` // ft
	Timestamp       time.Time `json:"timestamp"`
}

// NewSample derives the offsets of r from ref and stamps the result with ts.
// ts is stored as given, including its location.
func NewSample(r Reading, ref geo.Point, corr geo.Correction, ts time.Time) Sample {
	east, north, total := geo.Offsets(ref, r.Longitude, r.Latitude, corr)
	return Sample{
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		Height:          r.Height,
		Roll:            r.Roll,
		Pitch:           r.Pitch,
		Heading:         r.Heading,
		GForceMagnitude: r.GForceMagnitude,
		EastOffset:      east,
		NorthOffset:     north,
		TotalOffset:     total,
		Timestamp:       ts,
	}
}

// Validate reports the first field that has no JSON number form (NaN or ±Inf).
func (s Sample) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"latitude", s.Latitude},
		{"longitude", s.Longitude},
		{"height", s.Height},
		{"roll", s.Roll},
		{"pitch", s.Pitch},
		{"heading", s.Heading},
		{"gForceMagnitude", s.GForceMagnitude},
		{"east_offset", s.EastOffset},
		{"north_offset", s.NorthOffset},
		{"total_offset", s.TotalOffset},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s is not finite: %v", f.name, f.v)
		}
	}
	return nil
}
