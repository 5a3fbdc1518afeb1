package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"telescope/pkg/telescope"
)

const DefaultConnectTimeout = 10 * time.Second

// Options carries the collaborators a client needs besides its descriptor.
// Zero values select the real implementations.
type Options struct {
	Logger log.FieldLogger
	// ServerOutput receives stdout and stderr of a spawned telescope server.
	ServerOutput io.Writer
	// ServerDir is searched for telescope server executables.
	ServerDir      string
	ConnectTimeout time.Duration

	Dial       func(ctx context.Context, network, address string) (net.Conn, error)
	OpenSerial func(path string) (io.ReadWriteCloser, error)
	NewMQTT    func(opts *mqtt.ClientOptions) mqtt.Client
}

func (o Options) logger() log.FieldLogger {
	if o.Logger == nil {
		return log.StandardLogger()
	}
	return o.Logger
}

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return o.ConnectTimeout
}

func (o Options) dial() func(ctx context.Context, network, address string) (net.Conn, error) {
	if o.Dial != nil {
		return o.Dial
	}
	var d net.Dialer
	return d.DialContext
}

func (o Options) openSerial() func(path string) (io.ReadWriteCloser, error) {
	if o.OpenSerial != nil {
		return o.OpenSerial
	}
	return openSerialPort
}

func (o Options) newMQTT() func(opts *mqtt.ClientOptions) mqtt.Client {
	if o.NewMQTT != nil {
		return o.NewMQTT
	}
	return mqtt.NewClient
}

// New builds the client variant selected by d.Connection. The descriptor is
// validated first; for the process kind the server is not launched until
// Connect.
func New(slot int, d telescope.Descriptor, opts Options) (Client, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor at slot %d: %w", slot, err)
	}

	switch d.Connection {
	case telescope.ConnectionVirtual:
		return NewVirtual(d, opts), nil
	case telescope.ConnectionNetwork:
		return NewNetwork(d, opts), nil
	case telescope.ConnectionSerial:
		return NewSerial(d, opts), nil
	case telescope.ConnectionProcess:
		return NewProcess(slot, d, opts), nil
	case telescope.ConnectionMQTT:
		return NewMQTT(slot, d, opts), nil
	}
	return nil, fmt.Errorf("%w: %q", telescope.ErrInvalidKind, d.Connection)
}
