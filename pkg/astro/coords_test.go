package astro

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeparation(t *testing.T) {
	a := FromHoursDegrees(0, 0)
	assert.InDelta(t, 0.0, Separation(a, a), 1e-12)
	assert.InDelta(t, math.Pi/2, Separation(a, FromHoursDegrees(6, 0)), 1e-12)
	assert.InDelta(t, math.Pi/2, Separation(a, FromHoursDegrees(0, 90)), 1e-12)
}

func TestInterpolate(t *testing.T) {
	a := FromHoursDegrees(0, 0)
	b := FromHoursDegrees(6, 0)

	mid := Interpolate(a, b, 0.5)
	assert.InDelta(t, 3.0, mid.Hours(), 1e-9)
	assert.InDelta(t, 0.0, mid.Degrees(), 1e-9)

	assert.Equal(t, b, Interpolate(a, b, 1))
	assert.Less(t, Separation(Interpolate(a, b, 0.9), b), Separation(a, b))
}

func TestNormalizeRadians(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{-1e-17, 0},
		{-math.Pi / 2, 3 * math.Pi / 2},
		{2 * math.Pi, 0},
		{5 * math.Pi, math.Pi},
	}
	for _, tc := range tests {
		got := normalizeRadians(tc.in)
		assert.InDelta(t, tc.want, got, 1e-12, "normalizeRadians(%g)", tc.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 2*math.Pi)
	}
}

func TestFromVectorStaysBelowFullCircle(t *testing.T) {
	got := fromVector([3]float64{1, -1e-18, 0})
	assert.Less(t, got.RA, 2*math.Pi)
	assert.Less(t, got.Hours(), 24.0)
}
