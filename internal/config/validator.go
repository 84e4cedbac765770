package config

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks the loaded configuration for inconsistencies that would
// only surface later at runtime.
func Validate(cfg *Config) error {
	if cfg.Database.MongoDB.URI == "" {
		return fmt.Errorf("database.mongodb.uri is required")
	}
	if cfg.Database.MongoDB.Database == "" {
		return fmt.Errorf("database.mongodb.database is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}

	if cfg.Broker.Enabled {
		if len(cfg.Broker.Kafka.Brokers) == 0 {
			return fmt.Errorf("broker.kafka.brokers is required when broker.enabled is true")
		}
		if cfg.Broker.EventsTopic == "" {
			return fmt.Errorf("broker.events_topic is required when broker.enabled is true")
		}
	}

	if cfg.Channels.Cloud.Enabled {
		if cfg.Channels.Cloud.AccessToken == "" {
			return fmt.Errorf("channels.cloud.access_token is required when the cloud channel is enabled")
		}
		if cfg.Channels.Cloud.PhoneNumberID == "" {
			return fmt.Errorf("channels.cloud.phone_number_id is required when the cloud channel is enabled")
		}
	}

	if cfg.Channels.Webhook.Enabled {
		if !strings.HasPrefix(cfg.Channels.Webhook.URL, "http://") &&
			!strings.HasPrefix(cfg.Channels.Webhook.URL, "https://") {
			return fmt.Errorf("channels.webhook.url must be an http(s) URL, got %q", cfg.Channels.Webhook.URL)
		}
	}

	if cfg.Engine.SeedFilters != "" {
		if !json.Valid([]byte(cfg.Engine.SeedFilters)) {
			return fmt.Errorf("engine.seed_filters must be valid JSON")
		}
	}

	return nil
}
