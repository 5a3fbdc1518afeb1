// Package simulator is a telescope server speaking the Stellarium protocol
// for a simulated mount. It stands in for real hardware drivers when
// testing the spawned-server and network connection kinds.
package simulator

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"telescope/pkg/astro"
	"telescope/pkg/protocol"
)

const (
	DefaultInterval = 200 * time.Millisecond
	slewFraction    = 0.5 // of the remaining distance per report
)

// Server simulates one mount and reports its position to every connected
// client at a fixed interval.
type Server struct {
	Interval time.Duration
	Logger   log.FieldLogger

	mu      sync.Mutex
	current astro.Equatorial
	target  astro.Equatorial
}

// New returns a server whose mount points at RA 0h, Dec 0°.
func New(logger log.FieldLogger) *Server {
	return &Server{Interval: DefaultInterval, Logger: logger}
}

// ListenAndServe accepts connections on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Logger.Infof("Simulated telescope server listening on %s", ln.Addr())
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := s.Logger.WithField("client", conn.RemoteAddr().String())
	logger.Info("Client connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer cancel()
		r := bufio.NewReader(conn)
		for {
			g, err := protocol.ReadGoto(r)
			if err != nil {
				logger.Debugf("Read: %v", err)
				return
			}
			logger.Infof("GOTO %s", g.Pos)
			s.mu.Lock()
			s.target = g.Pos
			s.mu.Unlock()
		}
	}()

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Client disconnected")
			return
		case now := <-ticker.C:
			pos := s.step()
			if _, err := conn.Write(protocol.EncodePosition(now, pos, 0)); err != nil {
				logger.Debugf("Write: %v", err)
				return
			}
		}
	}
}

// step advances the simulated mount and returns its new position.
func (s *Server) step() astro.Equatorial {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = astro.Interpolate(s.current, s.target, slewFraction)
	if astro.Separation(s.current, s.target) < 1e-6 {
		s.current = s.target
	}
	return s.current
}

// Position returns where the simulated mount points.
func (s *Server) Position() astro.Equatorial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
