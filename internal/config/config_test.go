package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
opensky:
  traffic_timespan_days: 1
  credentials:
    username: legacy
    password: hunter2
kafka:
  broker: broker:9092
  num_partitions: 3
publish:
  interval_seconds: 10
  cities:
    Brussels: EBBR
    Amsterdam: EHAM
archive:
  path: /tmp/flights.db
metrics:
  addr: ":9102"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.OpenSky.TrafficTimespanDays)
	assert.Equal(t, "legacy", cfg.OpenSky.Credentials.Username)
	assert.Equal(t, "broker:9092", cfg.Kafka.Broker)
	assert.Equal(t, 3, cfg.Kafka.NumPartitions)
	assert.Equal(t, 1, cfg.Kafka.ReplicationFactor, "defaulted")
	assert.Equal(t, 10*time.Second, cfg.Publish.Interval())
	assert.Equal(t, "EBBR", cfg.Publish.Cities["Brussels"])
	assert.Equal(t, "/tmp/flights.db", cfg.Archive.Path)
	assert.Equal(t, ":9102", cfg.Metrics.Addr)
}

func TestLoadDefaultsAndEnvBroker(t *testing.T) {
	t.Setenv("KAFKA_BROKER", "env-broker:9092")
	t.Setenv("OPENSKY_CLIENT_ID", "env-id")

	path := writeConfig(t, `
publish:
  cities:
    Brussels: EBBR
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-broker:9092", cfg.Kafka.Broker)
	assert.Equal(t, 5*time.Second, cfg.Publish.Interval(), "default interval")
	assert.Equal(t, "env-id", cfg.OpenSky.Credentials.ClientID)
	assert.Empty(t, cfg.Archive.Path)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoadRejectsEmptyCities(t *testing.T) {
	path := writeConfig(t, `
publish:
  interval_seconds: 5
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cities")
}

func TestLoadRejectsNegativeTimespan(t *testing.T) {
	path := writeConfig(t, `
opensky:
  traffic_timespan_days: -1
publish:
  cities:
    Brussels: EBBR
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "traffic_timespan_days")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
