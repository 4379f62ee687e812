// Command twitch-ingest bridges a Twitch chat channel into a Kafka topic.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects the idempotent Kafka producer, then the Twitch IRC session,
//     refreshing the stored OAuth credential as needed.
//   - Normalizes every inbound chat event into one canonical record and
//     publishes it keyed by channel id.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /metrics, and the
//     one-time OAuth authorization flow.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/onnwee/twitch-ingest/auth"
	"github.com/onnwee/twitch-ingest/chat"
	"github.com/onnwee/twitch-ingest/config"
	"github.com/onnwee/twitch-ingest/ingest"
	"github.com/onnwee/twitch-ingest/kafka"
	"github.com/onnwee/twitch-ingest/server"
	"github.com/onnwee/twitch-ingest/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateIngestReady(); err != nil {
		slog.Error("configuration invalid", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("configuration loaded",
		slog.String("channel", cfg.TwitchChannel),
		slog.String("topic", cfg.KafkaTopic),
		slog.Any("brokers", cfg.KafkaBrokers))

	// Metrics / telemetry init
	telemetry.Init()

	// OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdownTracing, err := telemetry.InitTracing("twitch-ingest", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	// Credential source: a usable static token wins, otherwise the managed
	// refresh path backed by the token file.
	store := auth.FileStore{Path: cfg.TokenFile}
	var tokens auth.TokenProvider
	if usableStaticToken(cfg.TwitchOAuthToken) {
		tokens = auth.NewStatic(cfg.TwitchOAuthToken)
		slog.Info("using static oauth token from environment")
	} else {
		if cfg.TwitchOAuthToken != "" {
			slog.Warn("TWITCH_OAUTH_TOKEN looks like a placeholder; using stored credential instead")
		}
		tokens = &auth.Manager{
			Store:        store,
			ClientID:     cfg.TwitchClientID,
			ClientSecret: cfg.TwitchClientSecret,
		}
	}

	conn := chat.New(chat.Config{
		Channel:  cfg.TwitchChannel,
		Username: cfg.TwitchBotUsername,
	}, tokens)
	pub := kafka.New(kafka.Config{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		ClientID: cfg.KafkaClientID,
	})
	svc := ingest.New(conn, pub)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server (health/readiness/metrics/oauth)
	ready := func() bool { return conn.State() == chat.Connected && pub.Connected() }
	go func() {
		if err := server.Start(ctx, cfg, store, ready, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	if err := svc.Run(ctx); err != nil {
		slog.Error("service exited with error", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("service shut down")
}

// usableStaticToken filters out the placeholder values people leave in .env
// files; real Twitch user tokens are 30+ characters.
func usableStaticToken(tok string) bool {
	tok = strings.TrimPrefix(tok, "oauth:")
	if len(tok) < 20 {
		return false
	}
	return !strings.Contains(tok, "your_token") && !strings.Contains(tok, "placeholder")
}
