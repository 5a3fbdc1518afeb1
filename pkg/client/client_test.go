package client

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telescope/pkg/simulator"
	"telescope/pkg/telescope"
)

// helperServerEnv turns the test binary into a telescope server, so the
// process kind can spawn it.
const helperServerEnv = "TELESCOPE_HELPER_SERVER"

func TestMain(m *testing.M) {
	if os.Getenv(helperServerEnv) == "1" {
		runHelperServer(os.Args[1:])
		return
	}
	os.Exit(m.Run())
}

func runHelperServer(args []string) {
	if len(args) < 1 {
		os.Exit(2)
	}
	logger := log.New()
	logger.SetOutput(os.Stderr)
	srv := simulator.New(logger)
	srv.Interval = 20 * time.Millisecond
	if err := srv.ListenAndServe(context.Background(), "127.0.0.1:"+args[0]); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
	os.Exit(0)
}

func testLogger() log.FieldLogger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

// stepUntil drives c from the test goroutine until cond holds.
func stepUntil(t *testing.T, c Client, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met, client %s is %s (err: %v)", c.Name(), c.State(), c.Err())
		}
		c.CommunicationStep(time.Now())
		time.Sleep(time.Millisecond)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateConnecting.Terminal())
	assert.False(t, StateConnected.Terminal())
	assert.True(t, StateDisconnected.Terminal())
	assert.True(t, StateError.Terminal())
}

func TestNewSelectsVariant(t *testing.T) {
	tests := []struct {
		name       string
		descriptor telescope.Descriptor
		expected   any
	}{
		{
			name:       "virtual",
			descriptor: telescope.Descriptor{Name: "Sim", Connection: telescope.ConnectionVirtual},
			expected:   &Virtual{},
		},
		{
			name:       "network",
			descriptor: telescope.Descriptor{Name: "Net", Connection: telescope.ConnectionNetwork, Host: "localhost", Port: 10001},
			expected:   &StreamClient{},
		},
		{
			name:       "serial",
			descriptor: telescope.Descriptor{Name: "Ser", Connection: telescope.ConnectionSerial, SerialPort: "/dev/ttyUSB0"},
			expected:   &StreamClient{},
		},
		{
			name: "process",
			descriptor: telescope.Descriptor{
				Name: "Proc", Connection: telescope.ConnectionProcess,
				ServerName: "TelescopeServerNexStar", SerialPort: "/dev/ttyUSB0", Port: 10002,
			},
			expected: &StreamClient{},
		},
		{
			name:       "mqtt",
			descriptor: telescope.Descriptor{Name: "Broker", Connection: telescope.ConnectionMQTT, Host: "localhost", Port: 1883, TopicRoot: "obs/mount"},
			expected:   &MQTT{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(0, tt.descriptor, Options{Logger: testLogger()})
			require.NoError(t, err)
			assert.IsType(t, tt.expected, c)
			assert.Equal(t, tt.descriptor.Name, c.Name())
			assert.Equal(t, tt.descriptor.Connection, c.Kind())
			assert.Equal(t, StateConnecting, c.State())

			_, ok := c.CurrentPosition()
			assert.False(t, ok)
			assert.NoError(t, c.Close())
		})
	}
}

func TestNewRejectsInvalidDescriptor(t *testing.T) {
	_, err := New(3, telescope.Descriptor{Name: "Ser", Connection: telescope.ConnectionSerial}, Options{})
	assert.ErrorIs(t, err, telescope.ErrMissingField)

	_, err = New(3, telescope.Descriptor{Name: "Odd", Connection: "pigeon"}, Options{})
	assert.ErrorIs(t, err, telescope.ErrInvalidKind)
}
