package client

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telescope/pkg/astro"
	"telescope/pkg/protocol"
	"telescope/pkg/telescope"
)

func TestSerialScenario(t *testing.T) {
	device, host := net.Pipe()
	defer device.Close()

	var opened string
	c := NewSerial(telescope.Descriptor{
		Name: "Mount", Connection: telescope.ConnectionSerial, SerialPort: "COM1",
	}, Options{
		Logger: testLogger(),
		OpenSerial: func(path string) (io.ReadWriteCloser, error) {
			opened = path
			return host, nil
		},
	})

	require.NoError(t, c.Connect())
	stepUntil(t, c, func() bool { return c.State() == StateConnected })
	assert.Equal(t, "COM1", opened)

	want := astro.FromHoursDegrees(3, 33)
	go device.Write(protocol.EncodePosition(time.Now(), want, 0))
	stepUntil(t, c, func() bool { _, ok := c.CurrentPosition(); return ok })
	pos, _ := c.CurrentPosition()
	assert.InDelta(t, want.Dec, pos.Equatorial.Dec, wireDelta)

	target := astro.FromHoursDegrees(4, 44)
	c.SendGoto(target, telescope.EquinoxJ2000)
	require.NoError(t, device.SetReadDeadline(time.Now().Add(5*time.Second)))
	g, err := protocol.ReadGoto(bufio.NewReader(device))
	require.NoError(t, err)
	assert.InDelta(t, target.RA, g.Pos.RA, wireDelta)

	require.NoError(t, c.Close())
	assert.Equal(t, StateDisconnected, c.State())

	_, err = device.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestSerialOpenFailure(t *testing.T) {
	c := NewSerial(telescope.Descriptor{
		Name: "Mount", Connection: telescope.ConnectionSerial, SerialPort: "/dev/ttyMissing",
	}, Options{
		Logger: testLogger(),
		OpenSerial: func(string) (io.ReadWriteCloser, error) {
			return nil, errors.New("no such device")
		},
	})
	defer c.Close()

	require.NoError(t, c.Connect())
	stepUntil(t, c, func() bool { return c.State().Terminal() })
	assert.Equal(t, StateError, c.State())
	assert.ErrorContains(t, c.Err(), "no such device")
}
