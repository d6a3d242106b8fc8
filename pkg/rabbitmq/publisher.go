package rabbitmq

import (
	"fmt"

	"github.com/eclipse/paho.mqtt.golang"
)

// IPublisher is the publishing surface components depend on.
type IPublisher interface {
	PublishToQos(topic string, qos byte, retained bool, message string) error
	Close()
}

// Publisher publishes messages over a shared MQTT client. The topic is
// chosen per call so one publisher can serve many devices.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishToQos publishes message to topic at the given QoS level and
// waits for the broker hand-off.
func (p *Publisher) PublishToQos(topic string, qos byte, retained bool, message string) error {
	token := p.client.Publish(topic, qos, retained, message)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message: %v", token.Error())
	}
	return nil
}

// Close gracefully closes the underlying MQTT connection.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
