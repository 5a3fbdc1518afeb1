package control

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telescope/pkg/client"
)

func TestCommunicateStepsEveryClient(t *testing.T) {
	c, fakes := newTestControl(t)
	for _, slot := range []int{0, 4, 9} {
		require.NoError(t, c.Add(slot, virtualScope("Scope")))
		require.NoError(t, c.StartAtSlot(slot))
	}

	c.Communicate(DefaultTickInterval)
	c.Communicate(DefaultTickInterval)
	for _, slot := range []int{0, 4, 9} {
		assert.Equal(t, 2, fakes[slot].steps)
	}
}

func TestConnectedEventIsEdgeTriggered(t *testing.T) {
	c, fakes := newTestControl(t)
	rec := &recorder{}
	c.Subscribe(rec)

	require.NoError(t, c.Add(3, virtualScope("Edge")))
	require.NoError(t, c.StartAtSlot(3))
	fakes[3].onStep = func(f *fakeClient) { f.state = client.StateConnected }

	for i := 0; i < 5; i++ {
		c.Communicate(DefaultTickInterval)
	}
	require.Equal(t, []EventKind{EventClientConnected}, rec.kinds())
	assert.Equal(t, 3, rec.events[0].Slot)
	assert.Equal(t, "Edge", rec.events[0].Name)

	require.NoError(t, c.StopAtSlot(3))
	assert.Equal(t, []EventKind{EventClientConnected, EventClientDisconnected}, rec.kinds())
}

func TestErrorReapsClient(t *testing.T) {
	c, fakes := newTestControl(t)
	rec := &recorder{}
	c.Subscribe(rec)

	require.NoError(t, c.Add(1, virtualScope("Flaky")))
	require.NoError(t, c.StartAtSlot(1))
	fakes[1].state = client.StateConnected
	c.Communicate(DefaultTickInterval)

	fakes[1].onStep = func(f *fakeClient) {
		f.state = client.StateError
		f.err = errors.New("connection reset")
	}
	c.Communicate(DefaultTickInterval)

	assert.False(t, c.IsExistingClientAtSlot(1))
	assert.Equal(t, 1, fakes[1].closed)
	require.Equal(t, []EventKind{EventClientConnected, EventClientDisconnected}, rec.kinds())
	assert.Equal(t, "connection reset", rec.events[1].Error)
	assert.Equal(t, "Flaky", c.Get(1).Name, "descriptor survives")

	c.Communicate(DefaultTickInterval)
	assert.Len(t, rec.events, 2)
	assert.Equal(t, 2, fakes[1].steps, "never recreated")
}

func TestConnectAndFailInOneStepAnnouncesBoth(t *testing.T) {
	c, fakes := newTestControl(t)
	rec := &recorder{}
	c.Subscribe(rec)

	require.NoError(t, c.Add(6, virtualScope("Brief")))
	require.NoError(t, c.StartAtSlot(6))
	fakes[6].onStep = func(f *fakeClient) {
		f.connectedOnce = true
		f.state = client.StateDisconnected
	}
	c.Communicate(DefaultTickInterval)

	assert.False(t, c.IsExistingClientAtSlot(6))
	require.Equal(t, []EventKind{EventClientConnected, EventClientDisconnected}, rec.kinds())
	assert.Equal(t, "Brief", rec.events[0].Name)
	assert.Empty(t, rec.events[1].Error)
}

func TestFailBeforeConnectedOnlyDisconnects(t *testing.T) {
	c, fakes := newTestControl(t)
	rec := &recorder{}
	c.Subscribe(rec)

	require.NoError(t, c.Add(7, virtualScope("Refused")))
	require.NoError(t, c.StartAtSlot(7))
	fakes[7].onStep = func(f *fakeClient) {
		f.state = client.StateError
		f.err = errors.New("connection refused")
	}
	c.Communicate(DefaultTickInterval)

	require.Equal(t, []EventKind{EventClientDisconnected}, rec.kinds())
	assert.Equal(t, "connection refused", rec.events[0].Error)
}

func TestStopBeforeConnectedIsSilent(t *testing.T) {
	c, _ := newTestControl(t)
	rec := &recorder{}
	c.Subscribe(rec)

	require.NoError(t, c.Add(2, virtualScope("Quiet")))
	require.NoError(t, c.StartAtSlot(2))
	require.NoError(t, c.StopAtSlot(2))
	assert.Empty(t, rec.events)
}

func TestVirtualSlotConnects(t *testing.T) {
	c := New(Options{DataDir: t.TempDir(), Logger: testLogger()})
	var events []Event
	c.Subscribe(ListenerFunc(func(e Event) { events = append(events, e) }))

	require.NoError(t, c.Add(0, virtualScope("Sim")))
	require.NoError(t, c.StartAtSlot(0))
	c.Communicate(0)

	assert.True(t, c.IsConnectedClientAtSlot(0))
	pos, ok := c.CurrentPosition(0)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), pos.Time, time.Minute)
	require.Len(t, events, 1)
	assert.Equal(t, EventClientConnected, events[0].Kind)
}
