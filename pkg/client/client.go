// Package client implements the live connection to a telescope. Every
// connection kind satisfies the same Client contract; the control loop only
// ever talks to that interface.
package client

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"telescope/pkg/astro"
	"telescope/pkg/telescope"
)

var (
	ErrNotConnected   = errors.New("telescope is not connected")
	ErrConnectTimeout = errors.New("timed out connecting to telescope")
	ErrMalformed      = errors.New("malformed message from telescope")
	ErrClosed         = errors.New("client closed")
)

// State is the connection state of a client.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether a client in state s will never change state again.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateError
}

// Position is the last position reported by a telescope, always in J2000.
type Position struct {
	Equatorial astro.Equatorial `json:"equatorial"`
	Time       time.Time        `json:"time"`   // as stamped by the device
	Status     int32            `json:"status"` // device status code, 0 is OK
}

// Client is a connection to one telescope.
type Client interface {
	Name() string
	Kind() telescope.ConnectionKind
	State() State
	// Err returns the cause of the Error state, nil otherwise.
	Err() error
	// WasConnected reports whether the client ever reached Connected, even
	// if it has since ended.
	WasConnected() bool

	// Connect starts establishing the transport and returns immediately.
	Connect() error
	// CommunicationStep services the transport without blocking.
	CommunicationStep(now time.Time)
	// SendGoto queues a slew to pos, expressed in the given equinox. It is
	// ignored, and logged, unless the client is connected.
	SendGoto(pos astro.Equatorial, equinox telescope.Equinox)
	// CurrentPosition returns the last reported position, false if none
	// has been received yet.
	CurrentPosition() (Position, bool)
	// Close releases the transport. It is safe to call more than once.
	Close() error
}

// base holds the state shared by every client variant. It is only touched
// from the control goroutine.
type base struct {
	name    string
	kind    telescope.ConnectionKind
	equinox telescope.Equinox
	delay   time.Duration
	logger  log.FieldLogger

	state       State
	err         error
	connected   bool
	position    Position
	hasPosition bool

	connectTimeout time.Duration
	connectStarted time.Time
}

func newBase(d telescope.Descriptor, opts Options) base {
	return base{
		name:           d.Name,
		kind:           d.Connection,
		equinox:        d.EquinoxOrDefault(),
		delay:          time.Duration(d.Delay) * time.Microsecond,
		logger:         opts.logger(),
		state:          StateConnecting,
		connectTimeout: opts.connectTimeout(),
	}
}

func (b *base) Name() string                   { return b.name }
func (b *base) Kind() telescope.ConnectionKind { return b.kind }
func (b *base) State() State                   { return b.state }
func (b *base) Err() error                     { return b.err }
func (b *base) WasConnected() bool             { return b.connected }

func (b *base) CurrentPosition() (Position, bool) {
	return b.position, b.hasPosition
}

// startConnecting records when the connection attempt began.
func (b *base) startConnecting(now time.Time) {
	b.state = StateConnecting
	b.connectStarted = now
}

// checkConnectTimeout fails a client that has been connecting too long.
func (b *base) checkConnectTimeout(now time.Time) bool {
	if b.state != StateConnecting || b.connectTimeout <= 0 || b.connectStarted.IsZero() {
		return false
	}
	if now.Sub(b.connectStarted) > b.connectTimeout {
		b.fail(ErrConnectTimeout)
		return true
	}
	return false
}

func (b *base) setConnected() {
	if b.state == StateConnecting {
		b.state = StateConnected
		b.connected = true
		b.logger.Infof("%s connected", b.name)
	}
}

func (b *base) fail(err error) {
	if b.state.Terminal() {
		return
	}
	b.state = StateError
	b.err = err
	b.logger.Errorf("%s: %v", b.name, err)
}

func (b *base) disconnected() {
	if b.state.Terminal() {
		return
	}
	b.state = StateDisconnected
	b.logger.Infof("%s disconnected", b.name)
}

// report stores a position received in the device's equinox and marks the
// client connected.
func (b *base) report(pos astro.Equatorial, at time.Time, status int32) {
	if b.state.Terminal() {
		return
	}
	if b.equinox == telescope.EquinoxJNow {
		pos = astro.JNowToJ2000(pos, at)
	}
	b.position = Position{Equatorial: pos, Time: at, Status: status}
	b.hasPosition = true
	b.setConnected()
}

// canGoto logs and reports false when a GOTO cannot be sent.
func (b *base) canGoto(pos astro.Equatorial) bool {
	if b.state != StateConnected {
		b.logger.Warnf("%s: ignoring GOTO %s: %v", b.name, pos, ErrNotConnected)
		return false
	}
	if !pos.Valid() {
		b.logger.Warnf("%s: ignoring GOTO to invalid position %s", b.name, pos)
		return false
	}
	return true
}
