package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DiscoveryPort    = 32227
	discoveryProbe   = "telescopediscovery1"
	discoveryTimeout = time.Second
)

// DiscoveryResponder answers UDP discovery probes with the port of the
// administrative API.
type DiscoveryResponder struct {
	addr     string
	response string
	logger   log.FieldLogger

	conn *net.UDPConn
}

// NewDiscoveryResponder creates a responder that will listen on addr and
// announce adminPort.
func NewDiscoveryResponder(addr string, adminPort int, logger log.FieldLogger) *DiscoveryResponder {
	return &DiscoveryResponder{
		addr:     addr,
		response: fmt.Sprintf(`{"AdminPort": %d}`, adminPort),
		logger:   logger,
	}
}

// Listen binds the discovery socket.
func (d *DiscoveryResponder) Listen() error {
	udpAddr, err := net.ResolveUDPAddr("udp", d.addr)
	if err != nil {
		return fmt.Errorf("cannot resolve discovery address: %v", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("cannot bind discovery socket: %v", err)
	}
	d.conn = conn
	return nil
}

// LocalAddr returns the bound address, nil before Listen.
func (d *DiscoveryResponder) LocalAddr() net.Addr {
	if d.conn == nil {
		return nil
	}
	return d.conn.LocalAddr()
}

// Run answers probes until ctx is cancelled, binding the socket first if
// Listen was not called.
func (d *DiscoveryResponder) Run(ctx context.Context) error {
	if d.conn == nil {
		if err := d.Listen(); err != nil {
			return err
		}
	}
	defer d.conn.Close()

	buf := make([]byte, 1024)
	d.logger.Debugf("Discovery responder started on %s", d.conn.LocalAddr())
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Wake up periodically to check for cancellation.
		d.conn.SetReadDeadline(time.Now().Add(discoveryTimeout))

		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			d.logger.Debugf("Error reading from socket: %v", err)
			continue
		}

		data := string(buf[:n])
		d.logger.Debugf("Received %s from %s", data, addr)

		if strings.Contains(data, discoveryProbe) {
			if _, err := d.conn.WriteToUDP([]byte(d.response), addr); err != nil {
				d.logger.Errorf("Error writing to socket: %v", err)
			}
		}
	}
}
