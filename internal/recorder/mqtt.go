// Package recorder mirrors accepted readings to side channels so a
// test bench can watch the fleet without touching the backend: an MQTT
// topic per device and an InfluxDB bucket for plotting.
package recorder

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/KongGithubDev/MushIoT/internal/model"
	"github.com/KongGithubDev/MushIoT/pkg/rabbitmq"
)

// A broken broker must not slow the device loops down, so the mirror
// sits behind a breaker that opens after a run of publish failures.
const (
	mirrorTripAfter = 5
	mirrorOpenFor   = 30 * time.Second
	mirrorQoS       = byte(1)
)

// MQTT publishes each reading as JSON on a per-device topic.
type MQTT struct {
	pub   rabbitmq.IPublisher
	topic string // template, {device} is replaced per reading
	cb    *gobreaker.CircuitBreaker
}

func NewMQTT(pub rabbitmq.IPublisher, topicTmpl string) *MQTT {
	return &MQTT{
		pub:   pub,
		topic: topicTmpl,
		cb:    mkCB("mqtt-mirror", mirrorTripAfter, mirrorOpenFor),
	}
}

func mkCB(name string, fails int, open time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("mirror: breaker %s %s -> %s", name, from, to)
		},
	})
}

func (m *MQTT) Record(r model.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		log.Printf("mirror: marshal: %v", err)
		return
	}
	topic := strings.NewReplacer("{device}", r.DeviceID).Replace(m.topic)
	if _, err := m.cb.Execute(func() (any, error) {
		return nil, m.pub.PublishToQos(topic, mirrorQoS, false, string(payload))
	}); err != nil {
		log.Printf("mirror: publish %s: %v", topic, err)
	}
}

func (m *MQTT) Close() {
	m.pub.Close()
}
