package control

import (
	"errors"
	"fmt"

	"telescope/pkg/astro"
	"telescope/pkg/client"
	"telescope/pkg/telescope"
)

var ErrInvalidPosition = errors.New("invalid equatorial position")

// GotoSlot slews the telescope at slot to pos, given in J2000. The position
// is converted to the equinox the telescope was configured with.
func (c *Control) GotoSlot(slot int, pos astro.Equatorial) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	a, ok := c.active[slot]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoClient, slot)
	}
	if !pos.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidPosition, pos)
	}
	if a.client.State() != client.StateConnected {
		return fmt.Errorf("slot %d: %w", slot, client.ErrNotConnected)
	}

	equinox := a.descriptor.EquinoxOrDefault()
	if equinox == telescope.EquinoxJNow {
		pos = astro.J2000ToJNow(pos, c.now())
	}
	a.client.SendGoto(pos, equinox)
	return nil
}
