package transport

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/telemetry_node/internal/telemetry"
)

// JSONSuffix is appended to the frame topic for the JSON mirror.
const JSONSuffix = "/json"

const publishTimeout = 2 * time.Second

// Publisher is the subset of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink mirrors every packet to a broker: the binary frame on topic and
// the decoded record as JSON on topic+JSONSuffix.
type MQTTSink struct {
	pub   Publisher
	topic string
	close func()
}

// DialMQTT connects to broker and returns a sink publishing under topic.
func DialMQTT(broker, clientID, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	s := NewMQTTSink(client, topic)
	s.close = func() { client.Disconnect(250) }
	return s, nil
}

// NewMQTTSink wraps an already connected publisher.
func NewMQTTSink(pub Publisher, topic string) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic}
}

func (s *MQTTSink) Publish(p telemetry.Packet, frame []byte) error {
	if err := s.send(s.topic, frame); err != nil {
		return err
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("mqtt: marshal packet: %w", err)
	}
	return s.send(s.topic+JSONSuffix, payload)
}

func (s *MQTTSink) send(topic string, payload []byte) error {
	token := s.pub.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqtt: publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
