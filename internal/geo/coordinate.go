// Package geo handles coordinates and geodesic distances on the WGS84 ellipsoid.
package geo

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 position in degrees.
// Alt carries the optional altitude (meters) found in the source document.
type Coordinate struct {
	Alt *float64 `json:"alt,omitempty" yaml:"alt,omitempty"`
	Lat float64  `json:"lat" yaml:"lat"`
	Lon float64  `json:"lon" yaml:"lon"`
}

// Valid reports whether the coordinate is finite and within WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Key returns a comparable key used to deduplicate lookups.
func (c Coordinate) Key() [2]float64 {
	return [2]float64{c.Lat, c.Lon}
}

// String implements fmt.Stringer in the document order (lon,lat).
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lon, c.Lat)
}

// WithAlt returns a copy of c carrying altitude alt.
func (c Coordinate) WithAlt(alt float64) Coordinate {
	c.Alt = &alt
	return c
}
