package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// WGS84 ellipsoid parameters.
const (
	SemiMajorAxis = 6378137.0
	Flattening    = 1 / 298.257223563
	SemiMinorAxis = (1 - Flattening) * SemiMajorAxis
)

const (
	vincentyMaxIterations = 200
	vincentyTolerance     = 1e-12
)

// Method selects the distance formula.
type Method string

// Supported distance methods.
const (
	Vincenty  Method = "vincenty"
	Haversine Method = "haversine"
)

// DistanceFunc returns the distance function (km) for m.
// Unknown methods resolve to Vincenty.
func (m Method) DistanceFunc() func(a, b Coordinate) float64 {
	if m == Haversine {
		return HaversineDistance
	}
	return Distance
}

// Distance returns the geodesic surface distance in kilometers between a and b
// on the WGS84 ellipsoid using Vincenty's inverse formula.
//
// For nearly antipodal points, where the iteration does not converge,
// it falls back to the spherical haversine distance.
func Distance(a, b Coordinate) float64 {
	if a.Lat == b.Lat && a.Lon == b.Lon {
		return 0
	}

	meters, ok := vincentyInverse(a.Lat, a.Lon, b.Lat, b.Lon)
	if !ok {
		return HaversineDistance(a, b)
	}

	return meters / 1000
}

// HaversineDistance returns the great-circle distance in kilometers on a
// sphere with the mean Earth radius.
func HaversineDistance(a, b Coordinate) float64 {
	return orbgeo.DistanceHaversine(Point(a), Point(b)) / 1000
}

// PlanarSquared returns the squared planar degree distance used for nearest
// sample lookups at local scale.
func PlanarSquared(a, b Coordinate) float64 {
	dLat := a.Lat - b.Lat
	dLon := a.Lon - b.Lon
	return dLat*dLat + dLon*dLon
}

// Point converts c to an orb point ([Lon, Lat]).
func Point(c Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

func vincentyInverse(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	const (
		a = SemiMajorAxis
		b = SemiMinorAxis
		f = Flattening
	)

	L := toRadians(lon2 - lon1)
	U1 := math.Atan((1 - f) * math.Tan(toRadians(lat1)))
	U2 := math.Atan((1 - f) * math.Tan(toRadians(lat2)))
	sinU1, cosU1 := math.Sincos(U1)
	sinU2, cosU2 := math.Sincos(U2)

	lambda := L
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64

	converged := false
	for i := 0; i < vincentyMaxIterations; i++ {
		sinLambda, cosLambda := math.Sincos(lambda)
		t1 := cosU2 * sinLambda
		t2 := cosU1*sinU2 - sinU1*cosU2*cosLambda
		sinSigma = math.Sqrt(t1*t1 + t2*t2)
		if sinSigma == 0 {
			// coincident points
			return 0, true
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha

		cos2SigmaM = 0
		if cosSqAlpha != 0 {
			// equatorial lines have cosSqAlpha == 0
			cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		}

		C := f / 16 * cosSqAlpha * (4 + f*(4-3*cosSqAlpha))
		prev := lambda
		lambda = L + (1-C)*f*sinAlpha*
			(sigma+C*sinSigma*(cos2SigmaM+C*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))

		if math.Abs(lambda-prev) < vincentyTolerance {
			converged = true
			break
		}
	}

	if !converged {
		return 0, false
	}

	uSq := cosSqAlpha * (a*a - b*b) / (b * b)
	A := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	B := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := B * sinSigma * (cos2SigmaM + B/4*(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
		B/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return b * A * (sigma - deltaSigma), true
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
