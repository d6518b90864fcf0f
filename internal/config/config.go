// Package config loads the service configuration from a YAML file with
// environment-variable fallback for the broker address and OpenSky
// credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MulvadT/swim-adsb/internal/opensky"
)

// Config is the full service configuration.
type Config struct {
	OpenSky OpenSky `yaml:"opensky"`
	Kafka   Kafka   `yaml:"kafka"`
	Publish Publish `yaml:"publish"`
	Archive Archive `yaml:"archive"`
	Metrics Metrics `yaml:"metrics"`
}

// OpenSky configures the data provider.
type OpenSky struct {
	// TrafficTimespanDays is how many days to look back when querying
	// arrivals and departures.
	TrafficTimespanDays int `yaml:"traffic_timespan_days"`

	// Credentials may be given inline; blank fields resolve from the
	// OPENSKY_* environment variables.
	Credentials opensky.Credentials `yaml:"credentials"`
}

// Kafka configures the broker connection and topic layout.
type Kafka struct {
	Broker            string `yaml:"broker"`
	NumPartitions     int    `yaml:"num_partitions"`
	ReplicationFactor int    `yaml:"replication_factor"`
}

// Publish configures the polling loop.
type Publish struct {
	IntervalSeconds int `yaml:"interval_seconds"`

	// Cities maps a city name to its airport ICAO code. Each city gets
	// an arrivals.<city> and a departures.<city> topic.
	Cities map[string]string `yaml:"cities"`
}

// Interval returns the publish interval as a duration.
func (p Publish) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Archive configures the optional sqlite publication archive.
type Archive struct {
	// Path of the database file; empty disables archiving.
	Path string `yaml:"path"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	// Addr to serve /metrics on; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// Load reads, parses and validates the configuration file. Missing
// optional values take defaults; KAFKA_BROKER overrides an unset broker
// and OPENSKY_* variables fill missing credentials.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Kafka.Broker == "" {
		cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	}
	if cfg.Kafka.Broker == "" {
		cfg.Kafka.Broker = "localhost:9092"
	}
	if cfg.Kafka.NumPartitions <= 0 {
		cfg.Kafka.NumPartitions = 1
	}
	if cfg.Kafka.ReplicationFactor <= 0 {
		cfg.Kafka.ReplicationFactor = 1
	}
	if cfg.Publish.IntervalSeconds <= 0 {
		cfg.Publish.IntervalSeconds = 5
	}
	cfg.OpenSky.Credentials = cfg.OpenSky.Credentials.WithEnv()

	if cfg.OpenSky.TrafficTimespanDays < 0 {
		return nil, fmt.Errorf("opensky.traffic_timespan_days must not be negative")
	}
	if len(cfg.Publish.Cities) == 0 {
		return nil, fmt.Errorf("publish.cities must name at least one city")
	}

	return &cfg, nil
}
