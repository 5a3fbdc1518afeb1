package control

import (
	"time"
)

// stallThreshold is the gap between ticks above which the loop is reported
// as stalled.
const stallThreshold = 2 * time.Second

// Communicate runs one scheduler tick: every active client is stepped once,
// first connections are announced and clients that ended are torn down.
// dt is the time elapsed since the previous tick.
func (c *Control) Communicate(dt time.Duration) {
	if dt > stallThreshold {
		c.logger.Warnf("Control loop stalled for %s", dt)
	}

	now := c.now()
	for _, slot := range sortedKeys(c.active) {
		a := c.active[slot]
		a.client.CommunicationStep(now)

		// A client may connect and end within one step; it is still
		// announced before being reaped.
		if !a.announced && a.client.WasConnected() {
			a.announced = true
			c.emit(Event{Kind: EventClientConnected, Slot: slot, Name: a.descriptor.Name, Time: now})
		}
		if a.client.State().Terminal() {
			c.reap(slot, a)
		}
	}
}

// reap removes a client that reached a terminal state. Terminal clients are
// never reconnected automatically.
func (c *Control) reap(slot int, a *activeSlot) {
	delete(c.active, slot)
	logger := c.logger.WithField("slot", slot)

	if err := a.client.Close(); err != nil {
		logger.Warnf("Closing %q: %v", a.descriptor.Name, err)
	}
	if err := a.diag.Close(); err != nil {
		logger.Warnf("Closing diagnostic log: %v", err)
	}

	e := Event{Kind: EventClientDisconnected, Slot: slot, Name: a.descriptor.Name, Time: c.now()}
	if err := a.client.Err(); err != nil {
		e.Error = err.Error()
		logger.Errorf("%q failed: %v", a.descriptor.Name, err)
	} else {
		logger.Infof("%q disconnected", a.descriptor.Name)
	}
	c.emit(e)
}
