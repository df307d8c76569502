// v1
// internal/publish/mqtt.go
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttPublisher is the subset of mqtt.Client used by MQTTSink.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type MQTTSink struct {
	client mqttPublisher
	topic  string
	qos    byte
}

// NewMQTTSink starts connecting to broker in the background. Publishes fail
// until the connection is up; the paho client reconnects on its own.
func NewMQTTSink(broker, clientID, topic string, qos byte, log *slog.Logger) (*MQTTSink, error) {
	if qos > 1 {
		return nil, fmt.Errorf("mqtt qos %d not supported", qos)
	}
	lg := log.With(slog.String("component", "mqtt"), slog.String("broker", broker))
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOnConnectHandler(func(mqtt.Client) { lg.Info("mqtt_connected") }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { lg.Warn("mqtt_connection_lost", slog.Any("err", err)) })
	c := mqtt.NewClient(opts)
	c.Connect()
	return newMQTTSink(c, topic, qos), nil
}

func newMQTTSink(c mqttPublisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: c, topic: topic, qos: qos}
}

func (m *MQTTSink) Name() string { return "mqtt" }

func (m *MQTTSink) Publish(ctx context.Context, payload []byte) error {
	tok := m.client.Publish(m.topic, m.qos, false, payload)
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
