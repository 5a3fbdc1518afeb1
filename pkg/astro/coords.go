// Package astro holds the small amount of spherical astronomy the telescope
// control needs: equatorial coordinates and precession between the J2000
// frame and the equinox of date.
package astro

import (
	"fmt"
	"math"
)

// Equatorial is a direction on the celestial sphere. Both angles are in
// radians; RA is kept in [0, 2π).
type Equatorial struct {
	RA  float64 `json:"ra"`
	Dec float64 `json:"dec"`
}

// FromHoursDegrees builds an Equatorial from right ascension in hours and
// declination in degrees.
func FromHoursDegrees(raHours, decDegrees float64) Equatorial {
	return Equatorial{
		RA:  normalizeRadians(raHours * math.Pi / 12),
		Dec: decDegrees * math.Pi / 180,
	}
}

// Hours returns the right ascension in hours.
func (e Equatorial) Hours() float64 {
	return e.RA * 12 / math.Pi
}

// Degrees returns the declination in degrees.
func (e Equatorial) Degrees() float64 {
	return e.Dec * 180 / math.Pi
}

// Valid reports whether the declination lies within ±90°.
func (e Equatorial) Valid() bool {
	return !math.IsNaN(e.RA) && !math.IsNaN(e.Dec) && math.Abs(e.Dec) <= math.Pi/2
}

func (e Equatorial) String() string {
	return fmt.Sprintf("RA %.4fh Dec %+.4f°", e.Hours(), e.Degrees())
}

func (e Equatorial) vector() [3]float64 {
	cd := math.Cos(e.Dec)
	return [3]float64{cd * math.Cos(e.RA), cd * math.Sin(e.RA), math.Sin(e.Dec)}
}

func fromVector(v [3]float64) Equatorial {
	r := math.Hypot(v[0], v[1])
	return Equatorial{
		RA:  normalizeRadians(math.Atan2(v[1], v[0])),
		Dec: math.Atan2(v[2], r),
	}
}

func normalizeRadians(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	// -tiny + 2π rounds to 2π
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}

// Separation returns the angular distance between a and b in radians.
func Separation(a, b Equatorial) float64 {
	va, vb := a.vector(), b.vector()
	dot := va[0]*vb[0] + va[1]*vb[1] + va[2]*vb[2]
	cross := [3]float64{
		va[1]*vb[2] - va[2]*vb[1],
		va[2]*vb[0] - va[0]*vb[2],
		va[0]*vb[1] - va[1]*vb[0],
	}
	return math.Atan2(math.Sqrt(cross[0]*cross[0]+cross[1]*cross[1]+cross[2]*cross[2]), dot)
}

// Interpolate moves from a towards b by fraction f of the way along the
// straight line between their unit vectors.
func Interpolate(a, b Equatorial, f float64) Equatorial {
	if f >= 1 {
		return b
	}
	va, vb := a.vector(), b.vector()
	var v [3]float64
	for i := range v {
		v[i] = va[i] + (vb[i]-va[i])*f
	}
	return fromVector(v)
}
