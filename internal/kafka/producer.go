// Package kafka adapts the service to its broker: topic administration,
// message publication and consumption via segmentio/kafka-go.
package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/MulvadT/swim-adsb/internal/airtraffic"
)

// Publisher writes air-traffic messages to topics over a shared writer.
type Publisher struct {
	w *kafka.Writer
}

// NewPublisher creates a publisher for the given broker.
func NewPublisher(broker string) *Publisher {
	return &Publisher{
		w: &kafka.Writer{
			Addr:     kafka.TCP(broker),
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes one message to the topic. The envelope's content type
// travels as a message header.
func (p *Publisher) Publish(ctx context.Context, topic string, msg airtraffic.Message) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(topic),
		Value: msg.Body,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(msg.ContentType)},
		},
	})
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}
