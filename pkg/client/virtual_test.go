package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telescope/pkg/astro"
	"telescope/pkg/telescope"
)

func newTestVirtual() *Virtual {
	return NewVirtual(telescope.Descriptor{Name: "Sim", Connection: telescope.ConnectionVirtual}, Options{Logger: testLogger()})
}

func TestVirtualConnectsOnFirstStep(t *testing.T) {
	v := newTestVirtual()

	v.CommunicationStep(time.Now())
	assert.Equal(t, StateConnecting, v.State(), "no step effect before Connect")

	require.NoError(t, v.Connect())
	now := time.Now()
	v.CommunicationStep(now)
	assert.Equal(t, StateConnected, v.State())

	pos, ok := v.CurrentPosition()
	require.True(t, ok)
	assert.Equal(t, astro.Equatorial{}, pos.Equatorial)
	assert.Equal(t, now, pos.Time)
}

func TestVirtualIgnoresGotoBeforeConnected(t *testing.T) {
	v := newTestVirtual()
	require.NoError(t, v.Connect())

	v.SendGoto(astro.FromHoursDegrees(5, 5), telescope.EquinoxJ2000)
	assert.False(t, v.Slewing())
}

func TestVirtualSlewsToTarget(t *testing.T) {
	v := newTestVirtual()
	require.NoError(t, v.Connect())

	now := time.Now()
	v.CommunicationStep(now)

	target := astro.FromHoursDegrees(6, 45)
	v.SendGoto(target, telescope.EquinoxJ2000)
	require.True(t, v.Slewing())

	now = now.Add(100 * time.Millisecond)
	v.CommunicationStep(now)
	pos, _ := v.CurrentPosition()
	assert.Greater(t, astro.Separation(pos.Equatorial, astro.Equatorial{}), 0.0)
	assert.Greater(t, astro.Separation(pos.Equatorial, target), 1e-6)

	for i := 0; i < 100 && v.Slewing(); i++ {
		now = now.Add(time.Second)
		v.CommunicationStep(now)
	}
	require.False(t, v.Slewing())
	pos, _ = v.CurrentPosition()
	assert.InDelta(t, target.RA, pos.Equatorial.RA, 1e-9)
	assert.InDelta(t, target.Dec, pos.Equatorial.Dec, 1e-9)
}

func TestVirtualSlewTimeIsBounded(t *testing.T) {
	for _, target := range []astro.Equatorial{
		astro.FromHoursDegrees(5, 20),
		astro.FromHoursDegrees(12, 0),
		astro.FromHoursDegrees(0, 1e-4),
	} {
		v := newTestVirtual()
		require.NoError(t, v.Connect())

		start := time.Now()
		now := start
		v.CommunicationStep(now)
		v.SendGoto(target, telescope.EquinoxJ2000)
		for v.Slewing() && now.Sub(start) < time.Minute {
			now = now.Add(5 * time.Millisecond)
			v.CommunicationStep(now)
		}
		assert.False(t, v.Slewing(), "still slewing to %s", target)
		assert.Less(t, now.Sub(start), 4*time.Second, "slew to %s", target)
	}
}

func TestVirtualStoresJ2000(t *testing.T) {
	v := newTestVirtual()
	require.NoError(t, v.Connect())
	v.CommunicationStep(time.Now())

	jnow := astro.FromHoursDegrees(12, 30)
	v.SendGoto(jnow, telescope.EquinoxJNow)
	assert.Greater(t, astro.Separation(v.target, jnow), 0.0)
	assert.Less(t, astro.Separation(v.target, astro.JNowToJ2000(jnow, time.Now())), 1e-6)
}

func TestVirtualClose(t *testing.T) {
	v := newTestVirtual()
	require.NoError(t, v.Connect())
	v.CommunicationStep(time.Now())

	require.NoError(t, v.Close())
	assert.Equal(t, StateDisconnected, v.State())
	require.NoError(t, v.Close())
	assert.ErrorIs(t, v.Connect(), ErrClosed)

	v.CommunicationStep(time.Now())
	assert.Equal(t, StateDisconnected, v.State())
}
