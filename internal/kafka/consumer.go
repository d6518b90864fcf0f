package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewReader returns a reader positioned at the newest offset of the
// topic. Published traffic snapshots supersede each other, so catching
// up on history is pointless for consumers.
func NewReader(broker, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
		MaxWait:     1 * time.Second,
	})
}
