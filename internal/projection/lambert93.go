// Package projection converts WGS84 geodetic coordinates to Lambert-93 (EPSG:2154).
//
// The transform is the ellipsoidal Lambert Conformal Conic with two standard
// parallels on GRS80, using the official EPSG:2154 parameters. WGS84 and RGF93
// are treated as the same datum (null shift), matching the usual
// EPSG:4326 -> EPSG:2154 pipeline.
package projection

import (
	"math"

	"github.com/mohammed-shakir/coverage-lookup/internal/core/model"
)

const (
	// GRS80
	semiMajor  = 6378137.0
	flattening = 1 / 298.257222101

	phi1    = 44.0 * math.Pi / 180
	phi2    = 49.0 * math.Pi / 180
	phi0    = 46.5 * math.Pi / 180
	lambda0 = 3.0 * math.Pi / 180

	falseEasting  = 700000.0
	falseNorthing = 6600000.0

	// inverse latitude iteration
	maxIter = 16
	epsilon = 1e-12
)

// Lambert93 holds the derived cone constants. The zero value is not usable; use New.
type Lambert93 struct {
	e    float64
	n    float64
	aF   float64
	rho0 float64
}

var std = New()

// New computes the cone constants once.
func New() *Lambert93 {
	e := math.Sqrt(2*flattening - flattening*flattening)
	m1, m2 := msfn(e, phi1), msfn(e, phi2)
	t1, t2, t0 := tsfn(e, phi1), tsfn(e, phi2), tsfn(e, phi0)

	n := (math.Log(m1) - math.Log(m2)) / (math.Log(t1) - math.Log(t2))
	aF := semiMajor * m1 / (n * math.Pow(t1, n))
	return &Lambert93{
		e:    e,
		n:    n,
		aF:   aF,
		rho0: aF * math.Pow(t0, n),
	}
}

// Project converts a geodetic point to Lambert-93 using the shared projector.
func Project(p model.GeodeticPoint) model.PlanarPoint {
	return std.Project(p)
}

// Unproject converts a Lambert-93 point back to geodetic using the shared projector.
func Unproject(p model.PlanarPoint) model.GeodeticPoint {
	return std.Unproject(p)
}

func (l *Lambert93) Project(p model.GeodeticPoint) model.PlanarPoint {
	x, y := l.Forward(p.Lon, p.Lat)
	return model.PlanarPoint{X: x, Y: y}
}

func (l *Lambert93) Unproject(p model.PlanarPoint) model.GeodeticPoint {
	lon, lat := l.Inverse(p.X, p.Y)
	return model.GeodeticPoint{Lon: lon, Lat: lat}
}

// Forward maps (lon, lat) in degrees to (x, y) in meters.
func (l *Lambert93) Forward(lon, lat float64) (float64, float64) {
	phi := lat * math.Pi / 180
	lambda := lon * math.Pi / 180

	rho := l.aF * math.Pow(tsfn(l.e, phi), l.n)
	theta := l.n * (lambda - lambda0)

	x := falseEasting + rho*math.Sin(theta)
	y := falseNorthing + l.rho0 - rho*math.Cos(theta)
	return x, y
}

// Inverse maps (x, y) in meters to (lon, lat) in degrees.
func (l *Lambert93) Inverse(x, y float64) (float64, float64) {
	dx := x - falseEasting
	dy := l.rho0 - (y - falseNorthing)

	rho := math.Copysign(math.Hypot(dx, dy), l.n)
	theta := math.Atan2(dx, dy)

	t := math.Pow(rho/l.aF, 1/l.n)
	phi := math.Pi/2 - 2*math.Atan(t)
	for range maxIter {
		es := l.e * math.Sin(phi)
		next := math.Pi/2 - 2*math.Atan(t*math.Pow((1-es)/(1+es), l.e/2))
		if math.Abs(next-phi) < epsilon {
			phi = next
			break
		}
		phi = next
	}

	lambda := theta/l.n + lambda0
	return lambda * 180 / math.Pi, phi * 180 / math.Pi
}

func msfn(e, phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-e*e*s*s)
}

func tsfn(e, phi float64) float64 {
	es := e * math.Sin(phi)
	return math.Tan(math.Pi/4-phi/2) / math.Pow((1-es)/(1+es), e/2)
}
