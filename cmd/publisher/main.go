// Command publisher polls the OpenSky Network for live traffic around
// the configured cities and republishes the joined per-flight records
// to arrivals.<city> and departures.<city> Kafka topics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MulvadT/swim-adsb/internal/airtraffic"
	"github.com/MulvadT/swim-adsb/internal/archive"
	"github.com/MulvadT/swim-adsb/internal/config"
	"github.com/MulvadT/swim-adsb/internal/kafka"
	"github.com/MulvadT/swim-adsb/internal/metrics"
	"github.com/MulvadT/swim-adsb/internal/opensky"
)

type handlerFunc func(ctx context.Context, airport string) (airtraffic.Message, error)

// binding ties one topic to its airport and handler.
type binding struct {
	topic   string
	airport string
	handler handlerFunc
}

func bindings(cities map[string]string, at *airtraffic.AirTraffic) []binding {
	var out []binding
	for city, code := range cities {
		name := strings.ToLower(city)
		out = append(out,
			binding{topic: "arrivals." + name, airport: code, handler: at.ArrivalsHandler},
			binding{topic: "departures." + name, airport: code, handler: at.DeparturesHandler},
		)
	}
	return out
}

func main() {
	configPath := flag.String("config", "config.yml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := opensky.NewClient(cfg.OpenSky.Credentials)
	at := airtraffic.New(client, cfg.OpenSky.TrafficTimespanDays)
	topics := bindings(cfg.Publish.Cities, at)

	topicConfigs := make([]kafka.TopicConfig, len(topics))
	for i, b := range topics {
		topicConfigs[i] = kafka.TopicConfig{
			Topic:             b.topic,
			NumPartitions:     cfg.Kafka.NumPartitions,
			ReplicationFactor: cfg.Kafka.ReplicationFactor,
		}
	}
	if err := kafka.CreateTopics(cfg.Kafka.Broker, topicConfigs); err != nil {
		log.Fatalf("Failed to create topics: %v", err)
	}

	publisher := kafka.NewPublisher(cfg.Kafka.Broker)
	defer publisher.Close()

	var store *archive.DB
	if cfg.Archive.Path != "" {
		store, err = archive.Open(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open archive: %v", err)
		}
		defer store.Close()
		log.Printf("Archiving published records to %s", cfg.Archive.Path)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			log.Printf("Serving metrics on %s", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	ticker := time.NewTicker(cfg.Publish.Interval())
	defer ticker.Stop()

	log.Printf("Publishing %d topics every %s", len(topics), cfg.Publish.Interval())
	publishAll(ctx, topics, publisher, store)
	for {
		select {
		case <-ctx.Done():
			log.Println("Shutting down publisher")
			return
		case <-ticker.C:
			publishAll(ctx, topics, publisher, store)
		}
	}
}

func publishAll(ctx context.Context, topics []binding, publisher *kafka.Publisher, store *archive.DB) {
	for _, b := range topics {
		if ctx.Err() != nil {
			return
		}

		msg, err := b.handler(ctx, b.airport)
		if err != nil {
			log.Printf("handler error for %s: %v", b.topic, err)
			continue
		}

		if err := publisher.Publish(ctx, b.topic, msg); err != nil {
			log.Printf("publish error for %s: %v", b.topic, err)
			metrics.PublishFailed(b.topic)
			continue
		}
		metrics.MessagePublished(b.topic)

		if store != nil {
			archiveBatch(store, b.topic, msg)
		}
	}
}

func archiveBatch(store *archive.DB, topic string, msg airtraffic.Message) {
	var records []airtraffic.FlightRecord
	if err := json.Unmarshal(msg.Body, &records); err != nil {
		log.Printf("archive decode error for %s: %v", topic, err)
		metrics.ArchiveFailed()
		return
	}
	if err := store.RecordBatch(topic, records, time.Now()); err != nil {
		log.Printf("archive error for %s: %v", topic, err)
		metrics.ArchiveFailed()
	}
}
