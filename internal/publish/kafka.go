// v1
// internal/publish/kafka.go
package publish

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter mirrors the subset of kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes each reading as one message keyed by device ID, so all
// readings of a device land in the same partition.
type KafkaSink struct {
	writer messageWriter
	key    []byte
	now    func() time.Time
}

func NewKafkaSink(brokers []string, topic, deviceID string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSink(w, deviceID)
}

func newKafkaSink(w messageWriter, deviceID string) *KafkaSink {
	return &KafkaSink{writer: w, key: []byte(deviceID), now: time.Now}
}

func (k *KafkaSink) Name() string { return "kafka" }

func (k *KafkaSink) Publish(ctx context.Context, payload []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Key: k.key, Value: payload, Time: k.now()})
}

func (k *KafkaSink) Close() error { return k.writer.Close() }
