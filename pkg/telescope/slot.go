// Package telescope defines the persisted description of a configured
// telescope and the validation primitives shared by the control core and
// its administrative callers.
package telescope

const (
	MinSlot   = 0
	MaxSlot   = 9
	SlotCount = MaxSlot - MinSlot + 1

	MinPort = 1
	MaxPort = 65535

	// MaxDelay is the largest accepted GOTO delay, in microseconds.
	MaxDelay = 10_000_000
	// DefaultDelay is used when a device model does not name one.
	DefaultDelay = 500_000
)

// IsValidSlot reports whether n is a slot number.
func IsValidSlot(n int) bool {
	return n >= MinSlot && n <= MaxSlot
}

// IsValidPort reports whether p lies in the IANA TCP port range.
func IsValidPort(p int) bool {
	return p >= MinPort && p <= MaxPort
}

// IsValidDelay reports whether d is an acceptable GOTO delay in microseconds.
func IsValidDelay(d int) bool {
	return d >= 0 && d <= MaxDelay
}
