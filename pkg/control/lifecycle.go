package control

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"telescope/pkg/client"
)

// StartAtSlot creates the client for the descriptor at slot and starts
// connecting it. The connection outcome is observed by Communicate.
func (c *Control) StartAtSlot(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if _, busy := c.active[slot]; busy {
		return fmt.Errorf("%w: %d", ErrSlotBusy, slot)
	}
	d, ok := c.descriptors[slot]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoDescriptor, slot)
	}

	logger := c.logger.WithField("slot", slot)
	opts := c.clientOpts
	opts.Logger = logger

	var diag *diagnosticLog
	if c.useServerLogs {
		diag = openDiagnosticLog(c.root, c.dataDir, slot, c.diagOpts)
		opts.Logger = diag.logger.WithField("slot", slot)
		opts.ServerOutput = diag.file
	}

	cl, err := c.newClient(slot, d, opts)
	if err != nil {
		diag.Close()
		return fmt.Errorf("start slot %d: %w", slot, err)
	}
	if err := cl.Connect(); err != nil {
		cl.Close()
		diag.Close()
		return fmt.Errorf("start slot %d: %w", slot, err)
	}

	c.active[slot] = &activeSlot{descriptor: d, client: cl, diag: diag}
	logger.Infof("Started %q (%s)", d.Name, d.Connection)
	return nil
}

// StopAtSlot closes the client at slot and releases everything it owns.
// Stopping a slot without a client succeeds.
func (c *Control) StopAtSlot(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	a, ok := c.active[slot]
	if !ok {
		return nil
	}
	return c.stop(slot, a)
}

func (c *Control) stop(slot int, a *activeSlot) error {
	delete(c.active, slot)

	err := a.client.Close()
	if a.announced {
		c.emit(Event{Kind: EventClientDisconnected, Slot: slot, Name: a.descriptor.Name, Time: c.now()})
	}
	if derr := a.diag.Close(); derr != nil {
		err = errors.Join(err, derr)
	}
	if err != nil {
		return fmt.Errorf("stop slot %d: %w", slot, err)
	}
	c.logger.WithField("slot", slot).Infof("Stopped %q", a.descriptor.Name)
	return nil
}

// StopAll stops every active slot. Each slot is attempted regardless of
// earlier failures, which are returned joined.
func (c *Control) StopAll() error {
	var errs []error
	for _, slot := range sortedKeys(c.active) {
		if err := c.stop(slot, c.active[slot]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ActiveSlots returns the slots with a client, in ascending order.
func (c *Control) ActiveSlots() []int {
	return sortedKeys(c.active)
}

func (c *Control) IsExistingClientAtSlot(slot int) bool {
	_, ok := c.active[slot]
	return ok
}

func (c *Control) IsConnectedClientAtSlot(slot int) bool {
	a, ok := c.active[slot]
	return ok && a.client.State() == client.StateConnected
}

// ClientState returns the state of the client at slot, false if the slot has
// no client.
func (c *Control) ClientState(slot int) (client.State, bool) {
	a, ok := c.active[slot]
	if !ok {
		return 0, false
	}
	return a.client.State(), true
}

// CurrentPosition returns the last J2000 position reported at slot.
func (c *Control) CurrentPosition(slot int) (client.Position, bool) {
	a, ok := c.active[slot]
	if !ok {
		return client.Position{}, false
	}
	return a.client.CurrentPosition()
}

// ConnectedClientsNames maps the slot of every connected client to its name.
func (c *Control) ConnectedClientsNames() map[int]string {
	names := make(map[int]string)
	for slot, a := range c.active {
		if a.client.State() == client.StateConnected {
			names[slot] = a.client.Name()
		}
	}
	return names
}

// SearchByName returns the slot of the active client called name, compared
// case-insensitively.
func (c *Control) SearchByName(name string) (int, bool) {
	for _, slot := range sortedKeys(c.active) {
		if strings.EqualFold(c.active[slot].client.Name(), name) {
			return slot, true
		}
	}
	return 0, false
}

// ListMatchingNames returns up to limit names of active clients starting with
// prefix, case-insensitively and sorted. A limit of zero or less means no limit.
func (c *Control) ListMatchingNames(prefix string, limit int) []string {
	prefix = strings.ToLower(prefix)
	var names []string
	for _, a := range c.active {
		if strings.HasPrefix(strings.ToLower(a.client.Name()), prefix) {
			names = append(names, a.client.Name())
		}
	}
	sort.Strings(names)
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}
	return names
}
