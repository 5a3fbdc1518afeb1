package control

import (
	"fmt"

	"telescope/pkg/telescope"
)

func checkSlot(slot int) error {
	if !telescope.IsValidSlot(slot) {
		return fmt.Errorf("%w: %d", telescope.ErrInvalidSlot, slot)
	}
	return nil
}

// Add stores d at slot, replacing any descriptor already there. Only the
// slot number is checked; validating d is up to the caller. A running client
// keeps the descriptor it was started with until it is restarted.
func (c *Control) Add(slot int, d telescope.Descriptor) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if d.UniqueID == "" {
		d.UniqueID = telescope.UniqueID(slot, d.Name)
	}
	c.descriptors[slot] = d
	c.logger.WithField("slot", slot).Infof("Configured %q (%s)", d.Name, d.Connection)
	return nil
}

// Get returns the descriptor at slot, or the zero Descriptor when the slot is
// empty or out of range.
func (c *Control) Get(slot int) telescope.Descriptor {
	return c.descriptors[slot]
}

// Lookup is Get with an explicit presence result.
func (c *Control) Lookup(slot int) (telescope.Descriptor, bool) {
	d, ok := c.descriptors[slot]
	return d, ok
}

// Remove stops the client at slot, if any, and deletes its descriptor.
// Removing an empty slot is a no-op.
func (c *Control) Remove(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	err := c.StopAtSlot(slot)
	if _, ok := c.descriptors[slot]; ok {
		delete(c.descriptors, slot)
		c.logger.WithField("slot", slot).Info("Removed telescope")
	}
	return err
}

// DeleteAllTelescopes stops every client and empties the registry.
func (c *Control) DeleteAllTelescopes() error {
	err := c.StopAll()
	clear(c.descriptors)
	return err
}

// Slots returns the occupied slot numbers in ascending order.
func (c *Control) Slots() []int {
	return sortedKeys(c.descriptors)
}

// Descriptors returns a copy of the registry.
func (c *Control) Descriptors() map[int]telescope.Descriptor {
	out := make(map[int]telescope.Descriptor, len(c.descriptors))
	for slot, d := range c.descriptors {
		out[slot] = d
	}
	return out
}
