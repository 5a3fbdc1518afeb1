package client

import (
	"math"
	"time"

	"telescope/pkg/astro"
	"telescope/pkg/telescope"
)

const (
	// virtualSlewRate is the fraction of the remaining distance covered per
	// second of slewing.
	virtualSlewRate = 2.0
	// virtualMinSpeed bounds the approach so a slew always finishes, in
	// radians per second.
	virtualMinSpeed = 0.02
)

// Virtual is a simulated telescope. It connects instantly, reports its
// position while slewing and eases towards each GOTO target.
type Virtual struct {
	base

	current   astro.Equatorial // J2000
	target    astro.Equatorial
	slewing   bool
	requested bool
	closed    bool
	lastStep  time.Time
}

// NewVirtual returns a simulated telescope pointing at RA 0h, Dec 0°.
func NewVirtual(d telescope.Descriptor, opts Options) *Virtual {
	return &Virtual{base: newBase(d, opts)}
}

func (v *Virtual) Connect() error {
	if v.closed {
		return ErrClosed
	}
	v.requested = true
	return nil
}

func (v *Virtual) CommunicationStep(now time.Time) {
	if v.state.Terminal() || !v.requested {
		return
	}

	if v.state == StateConnecting {
		v.lastStep = now
		v.publish(now)
		return
	}

	dt := now.Sub(v.lastStep).Seconds()
	v.lastStep = now
	if !v.slewing || dt <= 0 {
		return
	}

	remaining := astro.Separation(v.current, v.target)
	step := math.Max(remaining*virtualSlewRate, virtualMinSpeed) * dt
	if step >= remaining {
		v.current = v.target
		v.slewing = false
		v.logger.Infof("%s reached %s", v.name, v.target)
	} else {
		v.current = astro.Interpolate(v.current, v.target, step/remaining)
	}
	v.publish(now)
}

// publish records the simulated position as if the mount had reported it.
func (v *Virtual) publish(now time.Time) {
	v.position = Position{Equatorial: v.current, Time: now}
	v.hasPosition = true
	v.setConnected()
}

func (v *Virtual) SendGoto(pos astro.Equatorial, equinox telescope.Equinox) {
	if !v.canGoto(pos) {
		return
	}
	if equinox == telescope.EquinoxJNow {
		pos = astro.JNowToJ2000(pos, time.Now())
	}
	v.logger.Infof("%s slewing to %s", v.name, pos)
	v.target = pos
	v.slewing = true
}

// Slewing reports whether a GOTO is in progress.
func (v *Virtual) Slewing() bool {
	return v.slewing
}

func (v *Virtual) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.slewing = false
	v.disconnected()
	return nil
}
