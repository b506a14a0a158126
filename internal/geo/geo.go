// Package geo computes great-circle distances and the east/north offsets of a
// position fix relative to a fixed reference point.
package geo

import "math"

const (
	// EarthRadiusMeters is the sphere radius used by the haversine formula.
	EarthRadiusMeters = 6376500.0
	// FeetPerMeter converts the haversine result to feet.
	FeetPerMeter = 3.28084

	degToRad = math.Pi / 180.0
)

// Point is a longitude/latitude pair in degrees.
type Point struct {
	Lon float64 `yaml:"longitude"`
	Lat float64 `yaml:"latitude"`
}

// Correction holds the fixed antenna-mounting displacement, in feet, that is
// subtracted from the raw north and east distances.
type Correction struct {
	North float64 `yaml:"north_ft"`
	East  float64 `yaml:"east_ft"`
}

// DefaultReference is the nominal platform position.
var DefaultReference = Point{Lon: -87.94334921, Lat: 29.10798914}

// DefaultCorrection is the antenna location correction for DefaultReference.
var DefaultCorrection = Correction{North: 70.01, East: 12.02}

// DistanceFeet returns the haversine distance in feet between (lonA, latA) and
// (lonB, latB). Inputs are degrees and are not range checked.
func DistanceFeet(lonA, latA, lonB, latB float64) float64 {
	phiA := latA * degToRad
	lambdaA := lonA * degToRad
	phiB := latB * degToRad
	dLambda := lonB*degToRad - lambdaA

	h := math.Pow(math.Sin((phiB-phiA)/2.0), 2.0) +
		math.Cos(phiA)*math.Cos(phiB)*math.Pow(math.Sin(dLambda/2.0), 2.0)

	return EarthRadiusMeters * (2.0 * math.Atan2(math.Sqrt(h), math.Sqrt(1.0-h))) * FeetPerMeter
}

// Offsets returns the corrected east, north and total displacement in feet of
// (lon, lat) from ref.
//
// The north component is negated after correction; callers rely on that sign.
func Offsets(ref Point, lon, lat float64, corr Correction) (east, north, total float64) {
	north = -1 * (DistanceFeet(lon, ref.Lat, lon, lat) - corr.North)
	east = 1 * (DistanceFeet(ref.Lon, lat, lon, lat) - corr.East)
	total = math.Sqrt(east*east + north*north)
	return east, north, total
}
