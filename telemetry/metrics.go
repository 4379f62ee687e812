// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ChatMessagesReceived prometheus.Counter
	ChatMessagesFiltered prometheus.Counter
	ChatParseFailures    prometheus.Counter
	ChatReconnects       prometheus.Counter
	KafkaPublished       prometheus.Counter
	KafkaPublishFailures prometheus.Counter

	// Histograms (seconds)
	PublishDuration prometheus.Observer

	// Gauges (1=up, 0=down)
	ChatConnectedGauge  prometheus.Gauge
	KafkaConnectedGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChatMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_chat_messages_received_total", Help: "Raw chat events received from Twitch IRC"})
		ChatMessagesFiltered = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_chat_messages_filtered_total", Help: "Chat events dropped by self-echo suppression"})
		ChatParseFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_chat_parse_failures_total", Help: "Chat events rejected by normalization"})
		ChatReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_chat_reconnects_total", Help: "Reconnect attempts scheduled against Twitch IRC"})
		KafkaPublished = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_kafka_messages_published_total", Help: "Canonical messages published to Kafka"})
		KafkaPublishFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_kafka_publish_failures_total", Help: "Messages dropped after a failed Kafka publish"})
		PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "ingest_kafka_publish_duration_seconds", Help: "Kafka publish duration seconds", Buckets: prometheus.DefBuckets})
		ChatConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "ingest_chat_connected", Help: "Twitch IRC session connected=1 disconnected=0"})
		KafkaConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "ingest_kafka_connected", Help: "Kafka producer connected=1 disconnected=0"})
	})
}

// Nil-safe increment helpers so components and their tests don't depend on
// Init having run.

func IncChatMessageReceived() {
	if ChatMessagesReceived != nil {
		ChatMessagesReceived.Inc()
	}
}

func IncChatMessageFiltered() {
	if ChatMessagesFiltered != nil {
		ChatMessagesFiltered.Inc()
	}
}

func IncChatParseFailure() {
	if ChatParseFailures != nil {
		ChatParseFailures.Inc()
	}
}

func IncChatReconnect() {
	if ChatReconnects != nil {
		ChatReconnects.Inc()
	}
}

func IncKafkaPublished() {
	if KafkaPublished != nil {
		KafkaPublished.Inc()
	}
}

func IncKafkaPublishFailure() {
	if KafkaPublishFailures != nil {
		KafkaPublishFailures.Inc()
	}
}

// ObservePublishDuration records a publish duration in seconds.
func ObservePublishDuration(seconds float64) {
	if PublishDuration != nil {
		PublishDuration.Observe(seconds)
	}
}

// SetChatConnected sets the chat session gauge.
func SetChatConnected(up bool) {
	if ChatConnectedGauge != nil {
		if up {
			ChatConnectedGauge.Set(1)
		} else {
			ChatConnectedGauge.Set(0)
		}
	}
}

// SetKafkaConnected sets the producer gauge.
func SetKafkaConnected(up bool) {
	if KafkaConnectedGauge != nil {
		if up {
			KafkaConnectedGauge.Set(1)
		} else {
			KafkaConnectedGauge.Set(0)
		}
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
