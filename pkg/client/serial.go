package client

import (
	"context"
	"io"

	"go.bug.st/serial"

	"telescope/pkg/telescope"
)

const serialBaudRate = 9600

func openSerialPort(path string) (io.ReadWriteCloser, error) {
	return serial.Open(path, &serial.Mode{
		BaudRate: serialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// NewSerial returns a client for a device attached to a local serial line.
func NewSerial(d telescope.Descriptor, opts Options) *StreamClient {
	path := d.SerialPort
	open := opts.openSerial()
	return newStreamClient(d, opts, func(ctx context.Context) (io.ReadWriteCloser, error) {
		return open(path)
	})
}
