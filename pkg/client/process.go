package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"telescope/pkg/telescope"
)

const (
	serverStopTimeout = 3 * time.Second
	serverDialRetry   = 100 * time.Millisecond
)

// serverProcess is a telescope server spawned for one slot.
type serverProcess struct {
	cmd    *exec.Cmd
	done   chan struct{}
	err    error
	logger log.FieldLogger
}

// startServer launches path with args. Output is copied to out by the exec
// package's own goroutines.
func startServer(path string, args []string, out io.Writer, logger log.FieldLogger) (*serverProcess, error) {
	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start telescope server: %w", err)
	}
	logger.Infof("Telescope server %s started (pid %d)", filepath.Base(path), cmd.Process.Pid)

	p := &serverProcess{cmd: cmd, done: make(chan struct{}), logger: logger}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Pid returns the process id of the server.
func (p *serverProcess) Pid() int {
	return p.cmd.Process.Pid
}

// exited reports, without blocking, whether the server has terminated.
func (p *serverProcess) exited() (bool, error) {
	select {
	case <-p.done:
		return true, p.err
	default:
		return false, nil
	}
}

// stop terminates the server's process group, escalating to SIGKILL if it
// does not exit in time, and waits until it is gone.
func (p *serverProcess) stop() error {
	if exited, _ := p.exited(); exited {
		return nil
	}

	if err := signalGroup(p.cmd.Process, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		p.logger.Warnf("Failed to signal telescope server: %v", err)
	}

	select {
	case <-p.done:
	case <-time.After(serverStopTimeout):
		p.logger.Warnf("Telescope server (pid %d) ignored SIGTERM, killing it", p.Pid())
		if err := signalGroup(p.cmd.Process, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("kill telescope server: %w", err)
		}
		<-p.done
	}
	p.logger.Infof("Telescope server (pid %d) stopped", p.Pid())
	return nil
}

// ServerPath resolves the executable of a telescope server: an absolute
// name is used as is, otherwise serverDir is tried before $PATH.
func ServerPath(serverDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	if serverDir != "" {
		candidate := filepath.Join(serverDir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return exec.LookPath(name)
}

// NewProcess returns a client that spawns the descriptor's telescope server
// on Connect and talks to it over the loopback interface. The server is
// started with the arguments "<port> <serial port>" and lives until Close.
func NewProcess(slot int, d telescope.Descriptor, opts Options) *StreamClient {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(d.Port))
	dial := opts.dial()

	c := newStreamClient(d, opts, func(ctx context.Context) (io.ReadWriteCloser, error) {
		return dialWithRetry(ctx, dial, addr)
	})

	out := opts.ServerOutput
	if out == nil {
		out = io.Discard
	}
	c.spawn = func() (*serverProcess, error) {
		path, err := ServerPath(opts.ServerDir, d.ServerName)
		if err != nil {
			return nil, fmt.Errorf("slot %d: %w", slot, err)
		}
		args := []string{strconv.Itoa(d.Port), d.SerialPort}
		return startServer(path, args, out, c.logger)
	}
	return c
}

// dialWithRetry keeps dialling until the freshly started server listens or
// ctx is cancelled.
func dialWithRetry(ctx context.Context, dial func(context.Context, string, string) (net.Conn, error), addr string) (io.ReadWriteCloser, error) {
	for {
		conn, err := dial(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(serverDialRetry):
		}
	}
}

// ServerPid returns the pid of the spawned server and whether one is running.
func (c *StreamClient) ServerPid() (int, bool) {
	if c.server == nil {
		return 0, false
	}
	if exited, _ := c.server.exited(); exited {
		return 0, false
	}
	return c.server.Pid(), true
}
