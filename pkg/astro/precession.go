package astro

import (
	"math"
	"time"
)

const (
	jdUnixEpoch = 2440587.5
	jdJ2000     = 2451545.0
	arcsec      = math.Pi / (180 * 3600)
)

// JulianDate converts t to a Julian date (UTC is treated as TT; the
// difference is far below slewing accuracy).
func JulianDate(t time.Time) float64 {
	return jdUnixEpoch + float64(t.UnixNano())/86400e9
}

// precessionMatrix returns the IAU 1976 rotation from the J2000 mean
// equator and equinox to the mean equator and equinox of t.
func precessionMatrix(t time.Time) [3][3]float64 {
	T := (JulianDate(t) - jdJ2000) / 36525
	zeta := (2306.2181*T + 0.30188*T*T + 0.017998*T*T*T) * arcsec
	z := (2306.2181*T + 1.09468*T*T + 0.018203*T*T*T) * arcsec
	theta := (2004.3109*T - 0.42665*T*T - 0.041833*T*T*T) * arcsec

	cz, sz := math.Cos(zeta), math.Sin(zeta)
	cZ, sZ := math.Cos(z), math.Sin(z)
	ct, st := math.Cos(theta), math.Sin(theta)

	return [3][3]float64{
		{cz*ct*cZ - sz*sZ, -sz*ct*cZ - cz*sZ, -st * cZ},
		{cz*ct*sZ + sz*cZ, -sz*ct*sZ + cz*cZ, -st * sZ},
		{cz * st, -sz * st, ct},
	}
}

// J2000ToJNow precesses a J2000 position to the equinox of t.
func J2000ToJNow(pos Equatorial, t time.Time) Equatorial {
	m := precessionMatrix(t)
	v := pos.vector()
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[i][0]*v[0] + m[i][1]*v[1] + m[i][2]*v[2]
	}
	return fromVector(out)
}

// JNowToJ2000 is the inverse of J2000ToJNow.
func JNowToJ2000(pos Equatorial, t time.Time) Equatorial {
	m := precessionMatrix(t)
	v := pos.vector()
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = m[0][i]*v[0] + m[1][i]*v[1] + m[2][i]*v[2]
	}
	return fromVector(out)
}
