package client

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"telescope/pkg/astro"
	"telescope/pkg/telescope"
)

const (
	mqttQueue      = 64
	mqttQuiesce    = 100 // milliseconds
	positionSuffix = "/position"
	gotoSuffix     = "/goto"
)

// mqttPosition is the payload a device publishes under <root>/position.
type mqttPosition struct {
	RA     float64 `json:"ra_hours"`
	Dec    float64 `json:"dec_degrees"`
	Time   int64   `json:"time_us,omitempty"` // device clock, 0 means "now"
	Status int32   `json:"status"`
}

// mqttGoto is the payload published under <root>/goto.
type mqttGoto struct {
	RA      float64           `json:"ra_hours"`
	Dec     float64           `json:"dec_degrees"`
	Equinox telescope.Equinox `json:"equinox"`
	Time    int64             `json:"time_us"`
}

// MQTT is a client for a device that exchanges positions and commands
// through an MQTT broker. Paho delivers messages on its own goroutines; the
// handlers only queue payloads for the next communication step.
type MQTT struct {
	base

	slot      int
	broker    string
	topicRoot string
	newClient func(opts *mqtt.ClientOptions) mqtt.Client
	now       func() time.Time

	client    mqtt.Client
	connect   mqtt.Token
	subscribe mqtt.Token
	messages  chan []byte
	lost      chan error
	closed    bool
}

// NewMQTT returns a client for the device under d.TopicRoot on the broker
// at d.Host:d.Port.
func NewMQTT(slot int, d telescope.Descriptor, opts Options) *MQTT {
	return &MQTT{
		base:      newBase(d, opts),
		slot:      slot,
		broker:    "tcp://" + net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		topicRoot: d.TopicRoot,
		newClient: opts.newMQTT(),
		now:       time.Now,
		messages:  make(chan []byte, mqttQueue),
		lost:      make(chan error, 1),
	}
}

func (m *MQTT) Connect() error {
	if m.closed {
		return ErrClosed
	}
	if m.client != nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.broker)
	opts.SetClientID(fmt.Sprintf("telescope-control-%d", m.slot))
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(m.connectTimeout)
	opts.SetConnectionLostHandler(m.connectionLost)

	m.client = m.newClient(opts)
	m.connect = m.client.Connect()
	m.startConnecting(m.now())
	return nil
}

func (m *MQTT) connectionLost(_ mqtt.Client, err error) {
	select {
	case m.lost <- err:
	default:
	}
}

func (m *MQTT) positionHandler(_ mqtt.Client, msg mqtt.Message) {
	select {
	case m.messages <- msg.Payload():
	default:
		// The control loop is behind; the next report supersedes this one.
	}
}

// tokenDone reports whether t has completed, without blocking.
func tokenDone(t mqtt.Token) bool {
	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}

func (m *MQTT) CommunicationStep(now time.Time) {
	if m.state.Terminal() || m.client == nil {
		return
	}

	if m.connect != nil {
		if !tokenDone(m.connect) {
			m.checkConnectTimeout(now)
			return
		}
		if err := m.connect.Error(); err != nil {
			m.fail(fmt.Errorf("connect to %s: %w", m.broker, err))
			return
		}
		m.connect = nil
		m.subscribe = m.client.Subscribe(m.topicRoot+positionSuffix, 0, m.positionHandler)
	}

	if m.subscribe != nil {
		if !tokenDone(m.subscribe) {
			m.checkConnectTimeout(now)
			return
		}
		if err := m.subscribe.Error(); err != nil {
			m.fail(fmt.Errorf("subscribe to %s: %w", m.topicRoot+positionSuffix, err))
			return
		}
		m.subscribe = nil
		m.setConnected()
	}

	select {
	case err := <-m.lost:
		m.fail(fmt.Errorf("connection to %s lost: %w", m.broker, err))
		return
	default:
	}

	for {
		select {
		case payload := <-m.messages:
			if err := m.handlePosition(payload, now); err != nil {
				m.fail(err)
				return
			}
		default:
			return
		}
	}
}

func (m *MQTT) handlePosition(payload []byte, now time.Time) error {
	var p mqttPosition
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.RA < 0 || p.RA >= 24 || p.Dec < -90 || p.Dec > 90 {
		return fmt.Errorf("%w: position out of range (%v, %v)", ErrMalformed, p.RA, p.Dec)
	}

	at := now
	if p.Time != 0 {
		at = time.UnixMicro(p.Time)
	}
	m.report(astro.FromHoursDegrees(p.RA, p.Dec), at, p.Status)
	return nil
}

func (m *MQTT) SendGoto(pos astro.Equatorial, equinox telescope.Equinox) {
	if !m.canGoto(pos) {
		return
	}

	payload, err := json.Marshal(mqttGoto{
		RA:      pos.Hours(),
		Dec:     pos.Degrees(),
		Equinox: equinox,
		Time:    m.now().Add(m.delay).UnixMicro(),
	})
	if err != nil {
		m.logger.Errorf("%s: encoding GOTO: %v", m.name, err)
		return
	}

	m.client.Publish(m.topicRoot+gotoSuffix, 0, false, payload)
	m.logger.Debugf("%s: GOTO %s (%s)", m.name, pos, equinox)
}

func (m *MQTT) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	if m.client != nil {
		if m.client.IsConnected() {
			m.client.Unsubscribe(m.topicRoot + positionSuffix)
		}
		m.client.Disconnect(mqttQuiesce)
	}
	m.disconnected()
	return nil
}
