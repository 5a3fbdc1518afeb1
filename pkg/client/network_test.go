package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telescope/pkg/astro"
	"telescope/pkg/protocol"
	"telescope/pkg/telescope"
)

// Quantisation of the wire format is about 1.5e-9 rad.
const wireDelta = 1e-8

type fakeServer struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln, conns: make(chan net.Conn, 1)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("client never connected")
		return nil
	}
}

func (s *fakeServer) descriptor() telescope.Descriptor {
	return telescope.Descriptor{
		Name:       "Remote",
		Connection: telescope.ConnectionNetwork,
		Host:       "127.0.0.1",
		Port:       s.port(),
	}
}

func connectNetwork(t *testing.T, srv *fakeServer, d telescope.Descriptor) (*StreamClient, net.Conn) {
	t.Helper()
	c := NewNetwork(d, Options{Logger: testLogger()})
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect())
	conn := srv.accept(t)
	stepUntil(t, c, func() bool { return c.State() != StateConnecting })
	require.Equal(t, StateConnected, c.State())
	return c, conn
}

func TestNetworkReceivesPositions(t *testing.T) {
	srv := newFakeServer(t)
	c, conn := connectNetwork(t, srv, srv.descriptor())

	_, ok := c.CurrentPosition()
	assert.False(t, ok, "connected before any report")

	want := astro.FromHoursDegrees(5.5, -12.25)
	at := time.Now().Truncate(time.Microsecond)
	_, err := conn.Write(protocol.EncodePosition(at, want, 0))
	require.NoError(t, err)

	stepUntil(t, c, func() bool { _, ok := c.CurrentPosition(); return ok })
	pos, _ := c.CurrentPosition()
	assert.InDelta(t, want.RA, pos.Equatorial.RA, wireDelta)
	assert.InDelta(t, want.Dec, pos.Equatorial.Dec, wireDelta)
	assert.True(t, at.Equal(pos.Time))

	// A step with nothing to read changes nothing.
	c.CommunicationStep(time.Now())
	assert.Equal(t, StateConnected, c.State())
	again, _ := c.CurrentPosition()
	assert.Equal(t, pos, again)
}

func TestNetworkConvertsJNowReports(t *testing.T) {
	srv := newFakeServer(t)
	d := srv.descriptor()
	d.Equinox = telescope.EquinoxJNow
	c, conn := connectNetwork(t, srv, d)

	reported := astro.FromHoursDegrees(18, 60)
	at := time.Now().Truncate(time.Microsecond)
	_, err := conn.Write(protocol.EncodePosition(at, reported, 0))
	require.NoError(t, err)

	stepUntil(t, c, func() bool { _, ok := c.CurrentPosition(); return ok })
	pos, _ := c.CurrentPosition()
	want := astro.JNowToJ2000(reported, at)
	assert.Less(t, astro.Separation(want, pos.Equatorial), wireDelta)
}

func TestNetworkSendsGotoWithDelay(t *testing.T) {
	srv := newFakeServer(t)
	d := srv.descriptor()
	d.Delay = 250_000
	c, conn := connectNetwork(t, srv, d)

	target := astro.FromHoursDegrees(20, 40)
	before := time.Now()
	c.SendGoto(target, telescope.EquinoxJ2000)
	after := time.Now()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	g, err := protocol.ReadGoto(bufio.NewReader(conn))
	require.NoError(t, err)

	assert.InDelta(t, target.RA, g.Pos.RA, wireDelta)
	assert.InDelta(t, target.Dec, g.Pos.Dec, wireDelta)
	assert.False(t, g.Time.Before(before.Add(250*time.Millisecond).Truncate(time.Microsecond)))
	assert.False(t, g.Time.After(after.Add(250*time.Millisecond)))
}

func TestNetworkIgnoresGotoWhenNotConnected(t *testing.T) {
	srv := newFakeServer(t)
	c := NewNetwork(srv.descriptor(), Options{Logger: testLogger()})
	defer c.Close()

	c.SendGoto(astro.FromHoursDegrees(1, 1), telescope.EquinoxJ2000)
	assert.Empty(t, c.stream.out)
	assert.Equal(t, StateConnecting, c.State())
}

func TestNetworkEOFDisconnects(t *testing.T) {
	srv := newFakeServer(t)
	c, conn := connectNetwork(t, srv, srv.descriptor())

	require.NoError(t, conn.Close())
	stepUntil(t, c, func() bool { return c.State().Terminal() })
	assert.Equal(t, StateDisconnected, c.State())
	assert.NoError(t, c.Err())
	assert.True(t, c.WasConnected())
}

func TestNetworkMalformedIsError(t *testing.T) {
	srv := newFakeServer(t)
	c, conn := connectNetwork(t, srv, srv.descriptor())

	_, err := conn.Write([]byte{2, 0, 0, 0})
	require.NoError(t, err)

	stepUntil(t, c, func() bool { return c.State().Terminal() })
	assert.Equal(t, StateError, c.State())
	assert.ErrorIs(t, c.Err(), ErrMalformed)
}

func TestNetworkOutOfRangeDeclinationIsError(t *testing.T) {
	srv := newFakeServer(t)
	c, conn := connectNetwork(t, srv, srv.descriptor())

	msg := protocol.EncodePosition(time.Now(), astro.Equatorial{}, 0)
	binary.LittleEndian.PutUint32(msg[16:20], 0x7FFFFFFF)
	_, err := conn.Write(msg)
	require.NoError(t, err)

	stepUntil(t, c, func() bool { return c.State().Terminal() })
	assert.Equal(t, StateError, c.State())
	assert.ErrorIs(t, c.Err(), ErrMalformed)
	_, ok := c.CurrentPosition()
	assert.False(t, ok)
}

func TestNetworkConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := NewNetwork(telescope.Descriptor{
		Name: "Gone", Connection: telescope.ConnectionNetwork, Host: "127.0.0.1", Port: port,
	}, Options{Logger: testLogger()})
	defer c.Close()

	require.NoError(t, c.Connect())
	stepUntil(t, c, func() bool { return c.State().Terminal() })
	assert.Equal(t, StateError, c.State())
	assert.Error(t, c.Err())
	assert.False(t, c.WasConnected())
}

func TestNetworkConnectTimeout(t *testing.T) {
	hang := func(ctx context.Context, network, address string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	c := NewNetwork(telescope.Descriptor{
		Name: "Slow", Connection: telescope.ConnectionNetwork, Host: "192.0.2.1", Port: 10001,
	}, Options{Logger: testLogger(), Dial: hang, ConnectTimeout: 50 * time.Millisecond})

	require.NoError(t, c.Connect())
	c.CommunicationStep(time.Now())
	assert.Equal(t, StateConnecting, c.State())

	c.CommunicationStep(time.Now().Add(time.Second))
	assert.Equal(t, StateError, c.State())
	assert.ErrorIs(t, c.Err(), ErrConnectTimeout)

	require.NoError(t, c.Close())
	assert.Equal(t, StateError, c.State(), "close keeps the error state")
}

func TestNetworkConnectAfterClose(t *testing.T) {
	srv := newFakeServer(t)
	c := NewNetwork(srv.descriptor(), Options{Logger: testLogger()})
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(), ErrClosed)
}
