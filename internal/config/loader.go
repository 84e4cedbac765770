package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("broker.enabled", "BROKER_ENABLED")
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.events_topic", "BROKER_EVENTS_TOPIC")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("admin.allowed_numbers", "ADMIN_ALLOWED_NUMBERS")

	viper.BindEnv("channels.cloud.enabled", "CHANNELS_CLOUD_ENABLED")
	viper.BindEnv("channels.cloud.base_url", "CHANNELS_CLOUD_BASE_URL")
	viper.BindEnv("channels.cloud.access_token", "CHANNELS_CLOUD_ACCESS_TOKEN")
	viper.BindEnv("channels.cloud.phone_number_id", "CHANNELS_CLOUD_PHONE_NUMBER_ID")
	viper.BindEnv("channels.cloud.verify_token", "CHANNELS_CLOUD_VERIFY_TOKEN")
	viper.BindEnv("channels.cloud.broadcast_to", "CHANNELS_CLOUD_BROADCAST_TO")

	viper.BindEnv("channels.local.enabled", "CHANNELS_LOCAL_ENABLED")
	viper.BindEnv("channels.local.session_store", "CHANNELS_LOCAL_SESSION_STORE")
	viper.BindEnv("channels.local.broadcast_to", "CHANNELS_LOCAL_BROADCAST_TO")
	viper.BindEnv("channels.local.groups_all", "CHANNELS_LOCAL_GROUPS_ALL")
	viper.BindEnv("channels.local.groups_list", "CHANNELS_LOCAL_GROUPS_LIST")

	viper.BindEnv("channels.webhook.enabled", "CHANNELS_WEBHOOK_ENABLED")
	viper.BindEnv("channels.webhook.url", "CHANNELS_WEBHOOK_URL")

	viper.BindEnv("engine.seed_filters", "ENGINE_SEED_FILTERS")
}

// Comma-separated list envs need splitting by hand; viper keeps them as a
// single string otherwise.
func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		cfg.Broker.Kafka.Brokers = splitTrimmed(brokersEnv)
	}

	if adminEnv := viper.GetString("ADMIN_ALLOWED_NUMBERS"); adminEnv != "" {
		cfg.Admin.AllowedNumbers = splitTrimmed(adminEnv)
	}

	if groupsEnv := viper.GetString("CHANNELS_LOCAL_GROUPS_LIST"); groupsEnv != "" {
		cfg.Channels.Local.GroupsList = splitTrimmed(groupsEnv)
	}

	return nil
}

func splitTrimmed(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
