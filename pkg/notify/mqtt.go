// Package notify forwards telescope connection events to an MQTT broker.
package notify

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"telescope/pkg/config"
	"telescope/pkg/control"
)

const (
	eventsSuffix   = "/events"
	publishTimeout = 5 * time.Second
)

// publisher is the part of mqtt.Client the notifier needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher publishes every event to <topic_root>/events and the last
// state of each slot, retained, to <topic_root>/slots/<slot>.
type MQTTPublisher struct {
	client    publisher
	topicRoot string
	logger    log.FieldLogger
}

func NewMQTTPublisher(client publisher, topicRoot string, logger log.FieldLogger) *MQTTPublisher {
	return &MQTTPublisher{client: client, topicRoot: topicRoot, logger: logger}
}

// Connect opens a connection to the broker described by cfg.
func Connect(cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.SetClientID("telescoped")
	opts.AddBroker("tcp://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return client, nil
}

// TelescopeEvent implements control.Listener. It never waits for the broker.
func (p *MQTTPublisher) TelescopeEvent(e control.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.Errorf("Encoding event: %v", err)
		return
	}

	p.publish(p.topicRoot+eventsSuffix, false, payload)
	p.publish(p.SlotTopic(e.Slot), true, payload)
}

// SlotTopic returns the retained state topic of slot.
func (p *MQTTPublisher) SlotTopic(slot int) string {
	return fmt.Sprintf("%s/slots/%d", p.topicRoot, slot)
}

func (p *MQTTPublisher) publish(topic string, retained bool, payload []byte) {
	token := p.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warnf("Publishing to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warnf("Publishing to %s: %v", topic, err)
		}
	}()
}
