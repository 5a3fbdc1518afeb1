package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"telescope/pkg/protocol"
)

const (
	inboundQueue  = 64
	outboundQueue = 16
)

var errQueueFull = errors.New("outgoing queue full")

// opener establishes a byte stream to a telescope. It runs on its own
// goroutine and must return promptly once ctx is cancelled.
type opener func(ctx context.Context) (io.ReadWriteCloser, error)

type inbound struct {
	msg protocol.Position
	err error
}

type openResult struct {
	conn io.ReadWriteCloser
	err  error
}

// stream runs blocking transport I/O on background goroutines and hands the
// results to the control goroutine through buffered channels, so that
// polling it never blocks.
type stream struct {
	open   opener
	ctx    context.Context
	cancel context.CancelFunc

	opened chan openResult
	in     chan inbound
	out    chan []byte

	conn    io.ReadWriteCloser
	started bool
	closed  bool
	wg      sync.WaitGroup
}

func newStream(open opener) *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		open:   open,
		ctx:    ctx,
		cancel: cancel,
		opened: make(chan openResult, 1),
		in:     make(chan inbound, inboundQueue),
		out:    make(chan []byte, outboundQueue),
	}
}

// start begins opening the transport in the background.
func (s *stream) start() {
	if s.started || s.closed {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn, err := s.open(s.ctx)
		if err == nil && s.ctx.Err() != nil {
			conn.Close()
			conn, err = nil, s.ctx.Err()
		}
		s.opened <- openResult{conn: conn, err: err}
	}()
}

// pollOpen reports the outcome of the open attempt once it is known. done is
// false while the attempt is still in progress.
func (s *stream) pollOpen() (done bool, err error) {
	if s.conn != nil {
		return true, nil
	}
	select {
	case res := <-s.opened:
		if res.err != nil {
			return true, res.err
		}
		s.conn = res.conn
		s.wg.Add(2)
		go s.readLoop()
		go s.writeLoop()
		return true, nil
	default:
		return false, nil
	}
}

func (s *stream) readLoop() {
	defer s.wg.Done()
	r := bufio.NewReader(s.conn)
	for {
		msg, err := protocol.ReadPosition(r)
		select {
		case s.in <- inbound{msg: msg, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *stream) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case b := <-s.out:
			if _, err := s.conn.Write(b); err != nil {
				select {
				case s.in <- inbound{err: err}:
				case <-s.ctx.Done():
				}
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// drain returns everything received since the last call without blocking.
func (s *stream) drain() []inbound {
	var got []inbound
	for {
		select {
		case in := <-s.in:
			got = append(got, in)
		default:
			return got
		}
	}
}

// send queues b for writing without blocking.
func (s *stream) send(b []byte) error {
	select {
	case s.out <- b:
		return nil
	default:
		return errQueueFull
	}
}

// close tears the transport down and waits for the background goroutines,
// so nothing is left running once it returns.
func (s *stream) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	s.wg.Wait()

	select {
	case res := <-s.opened:
		if res.conn != nil {
			res.conn.Close()
		}
	default:
	}
	return err
}
