package control

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const DefaultTickInterval = 50 * time.Millisecond

var ErrHostStopped = errors.New("control host stopped")

type request struct {
	fn   func(*Control) error
	done chan error
}

// Host runs a Control on a single goroutine. The scheduler ticks at a fixed
// interval and administrative requests submitted with Do run between ticks.
type Host struct {
	control  *Control
	interval time.Duration
	logger   log.FieldLogger

	requests chan request
	stopped  chan struct{}
}

func NewHost(c *Control, interval time.Duration, logger log.FieldLogger) *Host {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Host{
		control:  c,
		interval: interval,
		logger:   logger,
		requests: make(chan request),
		stopped:  make(chan struct{}),
	}
}

// Run drives the control loop until ctx is cancelled, then stops every
// client.
func (h *Host) Run(ctx context.Context) {
	defer close(h.stopped)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	last := time.Now()

	h.logger.Infof("Control loop running every %s", h.interval)
	for {
		select {
		case <-ctx.Done():
			if err := h.control.StopAll(); err != nil {
				h.logger.Errorf("Stopping telescopes: %v", err)
			}
			h.logger.Info("Control loop stopped")
			return

		case now := <-ticker.C:
			h.control.Communicate(now.Sub(last))
			last = now

		case req := <-h.requests:
			req.done <- req.fn(h.control)
		}
	}
}

// Do runs fn on the control goroutine and returns its error. If ctx ends
// after fn was accepted, fn still runs but its result is discarded.
func (h *Host) Do(ctx context.Context, fn func(*Control) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case h.requests <- req:
	case <-h.stopped:
		return ErrHostStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
