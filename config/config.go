// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Use ValidateIngestReady before starting the ingestion pipeline; components receive
// the struct explicitly and never read process environment themselves.
package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	// Twitch
	TwitchChannel      string
	TwitchBotUsername  string
	TwitchOAuthToken   string
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string
	TwitchScopes       string

	// Credential storage
	TokenFile string

	// Kafka
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaClientID string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if Twitch creds
// are missing; use ValidateIngestReady() when you require the chat pipeline. The OAuth
// callback flow only needs client id/secret and a redirect URI.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchBotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.TwitchOAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	if cfg.TwitchRedirectURI == "" {
		cfg.TwitchRedirectURI = "http://localhost:8080/auth/twitch/callback"
	}
	cfg.TwitchScopes = os.Getenv("TWITCH_SCOPES")
	if cfg.TwitchScopes == "" {
		// chat:read is enough; the service never sends messages
		cfg.TwitchScopes = "chat:read"
	}

	cfg.TokenFile = os.Getenv("TOKEN_FILE")
	if cfg.TokenFile == "" {
		cfg.TokenFile = "tokenStore.json"
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = "localhost:9092"
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	cfg.KafkaTopic = os.Getenv("KAFKA_TOPIC_CHAT_MESSAGES")
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "twitch-chat-messages"
	}
	cfg.KafkaClientID = os.Getenv("KAFKA_CLIENT_ID")
	if cfg.KafkaClientID == "" {
		cfg.KafkaClientID = "twitch-ingest"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateIngestReady checks required fields for running the ingestion pipeline.
// A static OAuth token and managed refresh credentials are alternatives: one of
// the two must be configured.
func (c *Config) ValidateIngestReady() error {
	if c.TwitchChannel == "" {
		return fmt.Errorf("missing twitch env: TWITCH_CHANNEL is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("missing kafka env: KAFKA_BROKERS is required")
	}
	if c.TwitchOAuthToken == "" && (c.TwitchClientID == "" || c.TwitchClientSecret == "") {
		return fmt.Errorf("missing twitch auth: set TWITCH_OAUTH_TOKEN or both TWITCH_CLIENT_ID and TWITCH_CLIENT_SECRET")
	}
	return nil
}
