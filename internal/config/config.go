package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Broker   BrokerConfig   `mapstructure:"broker"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Engine   EngineConfig   `mapstructure:"engine"`
	API      APIConfig      `mapstructure:"api"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	MongoDB MongoDBConfig `mapstructure:"mongodb"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Enabled     bool        `mapstructure:"enabled"`
	Kafka       KafkaConfig `mapstructure:"kafka"`
	EventsTopic string      `mapstructure:"events_topic"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AdminConfig holds the operator allow-list for in-chat filter commands.
// Numbers are digit-normalized before comparison.
type AdminConfig struct {
	AllowedNumbers []string `mapstructure:"allowed_numbers"`
}

type ChannelsConfig struct {
	Cloud   CloudChannelConfig   `mapstructure:"cloud"`
	Local   LocalChannelConfig   `mapstructure:"local"`
	Webhook WebhookChannelConfig `mapstructure:"webhook"`
}

// CloudChannelConfig configures the hosted messaging API adapter.
type CloudChannelConfig struct {
	Enabled               bool        `mapstructure:"enabled"`
	BaseURL               string      `mapstructure:"base_url"`
	AccessToken           string      `mapstructure:"access_token"`
	PhoneNumberID         string      `mapstructure:"phone_number_id"`
	VerifyToken           string      `mapstructure:"verify_token"`
	BroadcastTo           string      `mapstructure:"broadcast_to"`
	RequestTimeoutSeconds int         `mapstructure:"request_timeout_seconds"`
	Retry                 RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

// LocalChannelConfig configures the browser-session client adapter.
type LocalChannelConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	SessionStore string   `mapstructure:"session_store"`
	BroadcastTo  string   `mapstructure:"broadcast_to"`
	GroupsAll    bool     `mapstructure:"groups_all"`
	GroupsList   []string `mapstructure:"groups_list"`
}

// WebhookChannelConfig configures the generic outbound webhook adapter.
type WebhookChannelConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	URL                   string `mapstructure:"url"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

type EngineConfig struct {
	// SeedFilters is a JSON-encoded list of filter definitions applied
	// once at startup, create-if-absent by name.
	SeedFilters string `mapstructure:"seed_filters"`
	// SuppressionTTLSeconds caps the unique-text suppression window when a
	// filter does not set its own.
	SuppressionTTLSeconds int `mapstructure:"suppression_ttl_seconds"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
