package routing

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTBridge republishes MoatBus messages onto topics of the form
// moatbus/<src>/<code>, for interoperability with home-automation
// tooling that speaks MQTT rather than Redis pub/sub.
type MQTTBridge struct {
	client mqtt.Client
}

// NewMQTTBridge connects to the broker at brokerURL (e.g.
// "tcp://localhost:1883").
func NewMQTTBridge(brokerURL, clientID string) (*MQTTBridge, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("routing: connect to mqtt broker %s: %w", brokerURL, token.Error())
	}

	return &MQTTBridge{client: client}, nil
}

// Publish sends body as the retained payload for moatbus/<source>/<code>.
func (b *MQTTBridge) Publish(source, code uint8, body []byte) error {
	topic := fmt.Sprintf("moatbus/%d/%d", source, code)
	token := b.client.Publish(topic, 0, true, body)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("routing: mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (b *MQTTBridge) Close() {
	b.client.Disconnect(250)
}
