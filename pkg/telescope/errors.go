package telescope

import "errors"

var (
	ErrInvalidSlot    = errors.New("invalid slot number")
	ErrInvalidPort    = errors.New("invalid TCP port")
	ErrInvalidDelay   = errors.New("invalid delay")
	ErrInvalidName    = errors.New("telescope name cannot be empty")
	ErrInvalidKind    = errors.New("unknown connection kind")
	ErrInvalidEquinox = errors.New("unknown equinox")
	ErrMissingField   = errors.New("missing required field")
)
