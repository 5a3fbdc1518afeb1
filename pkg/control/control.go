// Package control owns the telescope slots: the descriptor registry, the
// live client at each started slot, the communication scheduler, the GOTO
// dispatcher and persistence of the registry.
//
// A Control is not safe for concurrent use. Everything runs on one control
// goroutine; Host provides that goroutine and marshals other callers onto it.
package control

import (
	"errors"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"telescope/pkg/client"
	"telescope/pkg/telescope"
)

var (
	ErrNoDescriptor = errors.New("no telescope configured at slot")
	ErrSlotBusy     = errors.New("a client is already active at slot")
	ErrNoClient     = errors.New("no active client at slot")
)

// ConnectionsFile is the descriptor file inside the data directory.
const ConnectionsFile = "connections.json"

// EventKind names a connection state change.
type EventKind string

const (
	EventClientConnected    EventKind = "client-connected"
	EventClientDisconnected EventKind = "client-disconnected"
)

// Event is published once per state transition of a slot's client.
type Event struct {
	Kind  EventKind `json:"kind"`
	Slot  int       `json:"slot"`
	Name  string    `json:"name"`
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
}

// Listener receives events on the control goroutine and must not block.
type Listener interface {
	TelescopeEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

func (f ListenerFunc) TelescopeEvent(e Event) { f(e) }

type Options struct {
	// DataDir holds the descriptor file and the diagnostic logs.
	DataDir string
	Logger  *log.Logger
	// Client is the base configuration handed to every client. Its Logger and
	// ServerOutput are replaced per slot.
	Client        client.Options
	UseServerLogs bool
	Diagnostics   DiagnosticOptions
}

// activeSlot is a started slot.
type activeSlot struct {
	descriptor telescope.Descriptor // as it was when started
	client     client.Client
	announced  bool // client-connected has been published
	diag       *diagnosticLog
}

type Control struct {
	root       *log.Logger
	logger     log.FieldLogger
	dataDir    string
	clientOpts client.Options
	diagOpts   DiagnosticOptions

	newClient func(slot int, d telescope.Descriptor, opts client.Options) (client.Client, error)
	now       func() time.Time

	descriptors   map[int]telescope.Descriptor
	active        map[int]*activeSlot
	listeners     []Listener
	useServerLogs bool
}

func New(opts Options) *Control {
	root := opts.Logger
	if root == nil {
		root = log.StandardLogger()
	}
	return &Control{
		root:          root,
		logger:        root.WithField("component", "control"),
		dataDir:       opts.DataDir,
		clientOpts:    opts.Client,
		diagOpts:      opts.Diagnostics,
		newClient:     client.New,
		now:           time.Now,
		descriptors:   make(map[int]telescope.Descriptor),
		active:        make(map[int]*activeSlot),
		useServerLogs: opts.UseServerLogs,
	}
}

// Subscribe registers l for connection events.
func (c *Control) Subscribe(l Listener) {
	c.listeners = append(c.listeners, l)
}

func (c *Control) emit(e Event) {
	c.logger.WithField("slot", e.Slot).Debugf("Event %s (%s)", e.Kind, e.Name)
	for _, l := range c.listeners {
		l.TelescopeEvent(e)
	}
}

// SetFlagUseServerLogs enables per-slot diagnostic logs for clients started
// from now on.
func (c *Control) SetFlagUseServerLogs(b bool) {
	c.useServerLogs = b
}

func (c *Control) FlagUseServerLogs() bool {
	return c.useServerLogs
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
