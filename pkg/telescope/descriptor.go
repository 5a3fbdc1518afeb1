package telescope

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ConnectionKind selects the Telescope Client variant for a slot.
type ConnectionKind string

const (
	ConnectionVirtual ConnectionKind = "virtual" // simulated telescope
	ConnectionSerial  ConnectionKind = "serial"  // device on a local serial line
	ConnectionNetwork ConnectionKind = "network" // remote telescope server over TCP
	ConnectionProcess ConnectionKind = "process" // locally spawned telescope server
	ConnectionMQTT    ConnectionKind = "mqtt"    // remote device behind an MQTT broker
)

// Known reports whether k is one of the supported connection kinds.
func (k ConnectionKind) Known() bool {
	switch k {
	case ConnectionVirtual, ConnectionSerial, ConnectionNetwork, ConnectionProcess, ConnectionMQTT:
		return true
	}
	return false
}

// Equinox is the coordinate frame a device expects GOTO commands in.
type Equinox string

const (
	EquinoxJ2000 Equinox = "J2000"
	EquinoxJNow  Equinox = "JNow"
)

// Descriptor is the persisted configuration of the telescope at one slot.
type Descriptor struct {
	Name        string         `json:"name"`
	Connection  ConnectionKind `json:"connection"`
	Host        string         `json:"host_name,omitempty"`
	Port        int            `json:"tcp_port,omitempty"`
	SerialPort  string         `json:"serial_port,omitempty"`
	ServerName  string         `json:"server_name,omitempty"`
	TopicRoot   string         `json:"topic_root,omitempty"`
	Equinox     Equinox        `json:"equinox,omitempty"`
	Delay       int            `json:"delay"` // microseconds
	DeviceModel string         `json:"device_model,omitempty"`
	AutoConnect bool           `json:"connect_at_startup"`
	UniqueID    string         `json:"unique_id,omitempty"`
}

// IsZero reports whether d is the empty descriptor returned for an
// unoccupied slot.
func (d Descriptor) IsZero() bool {
	return d == Descriptor{}
}

// EquinoxOrDefault returns the configured equinox, J2000 when unset.
func (d Descriptor) EquinoxOrDefault() Equinox {
	if d.Equinox == "" {
		return EquinoxJ2000
	}
	return d.Equinox
}

// Validate checks every field of the descriptor and returns all problems
// joined together.
func (d Descriptor) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, ErrInvalidName)
	}
	if !d.Connection.Known() {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidKind, d.Connection))
	}
	if d.Equinox != "" && d.Equinox != EquinoxJ2000 && d.Equinox != EquinoxJNow {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidEquinox, d.Equinox))
	}
	if !IsValidDelay(d.Delay) {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidDelay, d.Delay))
	}

	switch d.Connection {
	case ConnectionSerial:
		if d.SerialPort == "" {
			errs = append(errs, fmt.Errorf("%w: serial_port", ErrMissingField))
		}
	case ConnectionNetwork, ConnectionMQTT:
		if d.Host == "" {
			errs = append(errs, fmt.Errorf("%w: host_name", ErrMissingField))
		}
		if !IsValidPort(d.Port) {
			errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, d.Port))
		}
	case ConnectionProcess:
		if d.ServerName == "" {
			errs = append(errs, fmt.Errorf("%w: server_name", ErrMissingField))
		}
		if d.SerialPort == "" {
			errs = append(errs, fmt.Errorf("%w: serial_port", ErrMissingField))
		}
		if !IsValidPort(d.Port) {
			errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, d.Port))
		}
	}

	return errors.Join(errs...)
}

// UniqueID derives a stable identifier for the telescope configured at slot
// with the given name.
func UniqueID(slot int, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("telescope:"+strconv.Itoa(slot)+":"+name)).String()
}
