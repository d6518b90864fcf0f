package kafka

import (
	"fmt"
	"net"

	"github.com/segmentio/kafka-go"
)

// TopicConfig describes one topic to ensure.
type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
}

// CreateTopics ensures each topic exists with the given config. Topics
// that already exist are left untouched by the broker.
func CreateTopics(broker string, configs []TopicConfig) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("dialing broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("resolving controller: %w", err)
	}
	ctrlConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprint(controller.Port)))
	if err != nil {
		return fmt.Errorf("dialing controller: %w", err)
	}
	defer ctrlConn.Close()

	for _, cfg := range configs {
		err = ctrlConn.CreateTopics(kafka.TopicConfig{
			Topic:             cfg.Topic,
			NumPartitions:     cfg.NumPartitions,
			ReplicationFactor: cfg.ReplicationFactor,
		})
		if err != nil {
			return fmt.Errorf("creating topic %s: %w", cfg.Topic, err)
		}
	}
	return nil
}
