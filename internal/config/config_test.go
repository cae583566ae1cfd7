package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("kafka:\n  brokers: [\"k1:9092\"]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "user-registration", cfg.Kafka.UserTopic)
	assert.Equal(t, "board-creation", cfg.Kafka.BoardQueue)
	assert.Equal(t, 30*time.Second, cfg.Processor.EventTimeout)
	assert.Equal(t, 3*time.Second, cfg.Push.SendTimeout)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Registry.RemovalGrace)
	assert.Equal(t, 30*time.Minute, cfg.Registry.RefreshInterval)
	assert.Equal(t, "http://localhost:8080/internal", cfg.Push.AdvertiseURL)
}

func TestLoad_EnvOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\nregistry:\n  removal_grace: 5s\n"), 0o600))

	t.Setenv("BOARD_SERVER_PORT", "9100")
	t.Setenv("BOARD_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("POSTGRES_PASSWORD", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Registry.RemovalGrace)
	assert.Equal(t, "http://localhost:9100/internal", cfg.Push.AdvertiseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
