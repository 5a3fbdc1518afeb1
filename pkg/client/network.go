package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"telescope/pkg/astro"
	"telescope/pkg/protocol"
	"telescope/pkg/telescope"
)

// StreamClient talks the Stellarium telescope protocol over a byte stream.
// It backs the network, serial and process connection kinds, which differ
// only in how the stream is opened.
type StreamClient struct {
	base
	stream *stream
	server *serverProcess // process kind only
	spawn  func() (*serverProcess, error)
	now    func() time.Time
}

func newStreamClient(d telescope.Descriptor, opts Options, open opener) *StreamClient {
	return &StreamClient{
		base:   newBase(d, opts),
		stream: newStream(open),
		now:    time.Now,
	}
}

// NewNetwork returns a client for a telescope server reachable over TCP.
func NewNetwork(d telescope.Descriptor, opts Options) *StreamClient {
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	dial := opts.dial()
	return newStreamClient(d, opts, func(ctx context.Context) (io.ReadWriteCloser, error) {
		return dial(ctx, "tcp", addr)
	})
}

// Connect launches the server, if the kind needs one, and starts opening
// the stream in the background.
func (c *StreamClient) Connect() error {
	if c.stream.closed {
		return ErrClosed
	}
	if c.spawn != nil && c.server == nil {
		srv, err := c.spawn()
		if err != nil {
			c.fail(err)
			return err
		}
		c.server = srv
	}
	c.startConnecting(c.now())
	c.stream.start()
	return nil
}

func (c *StreamClient) CommunicationStep(now time.Time) {
	if c.state.Terminal() || !c.stream.started {
		return
	}

	if c.server != nil {
		if exited, err := c.server.exited(); exited {
			if err == nil {
				err = errors.New("exit status 0")
			}
			c.fail(fmt.Errorf("telescope server exited: %w", err))
			return
		}
	}

	if c.stream.conn == nil {
		done, err := c.stream.pollOpen()
		switch {
		case !done:
			c.checkConnectTimeout(now)
			return
		case err != nil:
			c.fail(fmt.Errorf("connect: %w", err))
			return
		}
		c.setConnected()
	}

	for _, in := range c.stream.drain() {
		if in.err != nil {
			c.handleReadError(in.err)
			return
		}
		c.report(in.msg.Pos, in.msg.Time, in.msg.Status)
	}
}

func (c *StreamClient) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		c.disconnected()
	case errors.Is(err, protocol.ErrMalformed):
		c.fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	default:
		c.fail(err)
	}
}

func (c *StreamClient) SendGoto(pos astro.Equatorial, equinox telescope.Equinox) {
	if !c.canGoto(pos) {
		return
	}
	msg := protocol.EncodeGoto(c.now().Add(c.delay), pos)
	if err := c.stream.send(msg); err != nil {
		c.logger.Warnf("%s: dropping GOTO %s: %v", c.name, pos, err)
		return
	}
	c.logger.Debugf("%s: GOTO %s (%s)", c.name, pos, equinox)
}

// Close closes the stream and stops the spawned server, if any.
func (c *StreamClient) Close() error {
	err := c.stream.close()
	if c.server != nil {
		if serr := c.server.stop(); serr != nil {
			err = errors.Join(err, serr)
		}
		c.server = nil
	}
	c.disconnected()
	return err
}
