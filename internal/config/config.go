package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. BOARD_POSTGRES_DSN
// or BOARD_KAFKA_BROKERS=a:9092,b:9092.
const EnvPrefix = "BOARD"

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Processor ProcessorConfig `yaml:"processor"`
	Push      PushConfig      `yaml:"push"`
	Registry  RegistryConfig  `yaml:"registry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port" envconfig:"PORT"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn" envconfig:"DSN"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// KafkaConfig names one topic per event kind. Registration and posting topics
// may be read by several consumer groups; the board creation topic is a queue
// read by a single group.
type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers" envconfig:"BROKERS"`
	UserTopic         string        `yaml:"user_topic" envconfig:"USER_TOPIC"`
	MessageTopic      string        `yaml:"message_topic" envconfig:"MESSAGE_TOPIC"`
	BoardQueue        string        `yaml:"board_queue" envconfig:"BOARD_QUEUE"`
	GroupID           string        `yaml:"group_id" envconfig:"GROUP_ID"`
	RedeliveryBackoff time.Duration `yaml:"redelivery_backoff" envconfig:"REDELIVERY_BACKOFF"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps" envconfig:"RPS"`
	Burst int `yaml:"burst" envconfig:"BURST"`
}

// OutboxConfig drives the relay that publishes accepted events.
type OutboxConfig struct {
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL"`
	BatchSize    int           `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

type ProcessorConfig struct {
	EventTimeout time.Duration `yaml:"event_timeout" envconfig:"EVENT_TIMEOUT"`
}

// PushConfig: AdvertiseURL is the gateway address a server records on the
// connections it accepts, so each replica must advertise its own. GatewayURL
// is the processors' fallback for connections recorded without one.
type PushConfig struct {
	AdvertiseURL    string        `yaml:"advertise_url" envconfig:"ADVERTISE_URL"`
	GatewayURL      string        `yaml:"gateway_url" envconfig:"GATEWAY_URL"`
	SendTimeout     time.Duration `yaml:"send_timeout" envconfig:"SEND_TIMEOUT"`
	MaxInFlight     int           `yaml:"max_in_flight" envconfig:"MAX_IN_FLIGHT"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
}

type RegistryConfig struct {
	ConnectionTTL   time.Duration `yaml:"connection_ttl" envconfig:"CONNECTION_TTL"`
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL"`
	RemovalGrace    time.Duration `yaml:"removal_grace" envconfig:"REMOVAL_GRACE"`
}

type LogConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// Load reads the yaml file, overlays BOARD_* environment variables and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overlay: %w", err)
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Parse decodes yaml without touching the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Kafka.UserTopic == "" {
		c.Kafka.UserTopic = "user-registration"
	}
	if c.Kafka.MessageTopic == "" {
		c.Kafka.MessageTopic = "message-posting"
	}
	if c.Kafka.BoardQueue == "" {
		c.Kafka.BoardQueue = "board-creation"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "board-processor"
	}
	if c.Kafka.RedeliveryBackoff == 0 {
		c.Kafka.RedeliveryBackoff = 2 * time.Second
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Processor.EventTimeout == 0 {
		c.Processor.EventTimeout = 30 * time.Second
	}
	if c.Push.SendTimeout == 0 {
		c.Push.SendTimeout = 3 * time.Second
	}
	if c.Push.MaxInFlight == 0 {
		c.Push.MaxInFlight = 32
	}
	if c.Push.WriteBufferSize == 0 {
		c.Push.WriteBufferSize = 16
	}
	if c.Registry.ConnectionTTL == 0 {
		c.Registry.ConnectionTTL = 2 * time.Hour
	}
	if c.Registry.RefreshInterval == 0 {
		c.Registry.RefreshInterval = c.Registry.ConnectionTTL / 4
	}
	if c.Push.AdvertiseURL == "" {
		c.Push.AdvertiseURL = fmt.Sprintf("http://localhost:%d/internal", c.Server.Port)
	}
	if c.Registry.RemovalGrace == 0 {
		c.Registry.RemovalGrace = 10 * time.Second
	}
}
