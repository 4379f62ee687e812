// Package kafka wraps the franz-go producer used to publish canonical chat
// records. The producer runs with idempotent-produce semantics, acks from all
// in-sync replicas, and a single in-flight produce request per broker, which
// together give in-order exactly-once-per-partition delivery for a channel's
// records (the partition key is the channel id).
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/twitch-ingest/message"
	"github.com/onnwee/twitch-ingest/telemetry"
)

var (
	// ErrNotConnected is returned by Send before Connect has completed or
	// after Close. No network I/O happens in that case.
	ErrNotConnected = errors.New("kafka producer not connected")
	// ErrInvalidMessage is returned when a record fails final validation.
	ErrInvalidMessage = errors.New("invalid message")
)

// Retry policy for transient broker errors on a produce request.
const (
	produceRetries   = 5
	retryBackoffBase = 100 * time.Millisecond
	retryBackoffMax  = 30 * time.Second
)

// Config holds the producer settings.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Publisher owns the broker client. Connect once at startup; Send failures
// never tear the client down.
type Publisher struct {
	cfg       Config
	mu        sync.Mutex
	client    *kgo.Client
	connected atomic.Bool
}

// New builds an unconnected Publisher.
func New(cfg Config) *Publisher {
	return &Publisher{cfg: cfg}
}

// Connect establishes the broker client and verifies connectivity. franz-go
// enables idempotent produce by default and does not auto-create topics;
// both are left at their defaults deliberately.
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		slog.Warn("kafka producer already connected", slog.String("component", "kafka"))
		return nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(p.cfg.Brokers...),
		kgo.ClientID(p.cfg.ClientID),
		kgo.DefaultProduceTopic(p.cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		// One in-flight produce request preserves ordering under retries.
		kgo.MaxProduceRequestsInflightPerBroker(1),
		kgo.RecordRetries(produceRetries),
		kgo.RetryBackoffFn(retryBackoff),
		kgo.WithLogger(slogAdapter{slog.Default().With(slog.String("component", "kafka"))}),
	)
	if err != nil {
		return fmt.Errorf("create kafka client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return fmt.Errorf("kafka ping: %w", err)
	}

	p.client = client
	p.connected.Store(true)
	telemetry.SetKafkaConnected(true)
	slog.Info("kafka producer connected", slog.String("component", "kafka"),
		slog.Any("brokers", p.cfg.Brokers), slog.String("topic", p.cfg.Topic))
	return nil
}

// Send validates, serializes and publishes one record, keyed by channel id
// with the record timestamp taken from the message. A failed send leaves the
// client usable for subsequent sends.
func (p *Publisher) Send(ctx context.Context, msg message.Message) error {
	if !msg.Valid() {
		return fmt.Errorf("%w: channel=%q user=%q", ErrInvalidMessage, msg.ChannelID, msg.Username)
	}

	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	if client == nil || !p.connected.Load() {
		return ErrNotConnected
	}

	rec, err := buildRecord(p.cfg.Topic, msg)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMessage, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "kafka-publisher", "publish",
		attribute.String("messaging.destination.name", p.cfg.Topic),
		attribute.String("channel_id", msg.ChannelID),
	)
	defer span.End()

	start := time.Now()
	err = client.ProduceSync(ctx, rec).FirstErr()
	telemetry.ObservePublishDuration(time.Since(start).Seconds())
	if err != nil {
		telemetry.IncKafkaPublishFailure()
		telemetry.RecordError(span, err)
		return fmt.Errorf("produce: %w", err)
	}
	telemetry.IncKafkaPublished()
	telemetry.SetSpanSuccess(span)
	return nil
}

// buildRecord serializes the canonical message into its wire record.
func buildRecord(topic string, msg message.Message) (*kgo.Record, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(msg.ChannelID),
		Value:     payload,
		Timestamp: time.UnixMilli(msg.TimestampMs),
	}, nil
}

// retryBackoff implements the bounded produce retry policy:
// 100ms initial, doubling per failure, capped at 30s.
func retryBackoff(tries int) time.Duration {
	if tries < 1 {
		tries = 1
	}
	d := retryBackoffMax
	if tries-1 < 31 {
		if v := retryBackoffBase << (tries - 1); v > 0 && v < retryBackoffMax {
			d = v
		}
	}
	return d
}

// Connected reports whether the producer is usable.
func (p *Publisher) Connected() bool { return p.connected.Load() }

// Close flushes and releases the client. Idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return
	}
	p.connected.Store(false)
	telemetry.SetKafkaConnected(false)
	p.client.Close()
	p.client = nil
	slog.Info("kafka producer disconnected", slog.String("component", "kafka"))
}

// slogAdapter bridges franz-go's logger interface onto slog.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Level() kgo.LogLevel {
	if a.l.Enabled(context.Background(), slog.LevelDebug) {
		return kgo.LogLevelDebug
	}
	return kgo.LogLevelInfo
}

func (a slogAdapter) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	lvl := slog.LevelInfo
	switch level {
	case kgo.LogLevelError:
		lvl = slog.LevelError
	case kgo.LogLevelWarn:
		lvl = slog.LevelWarn
	case kgo.LogLevelDebug:
		lvl = slog.LevelDebug
	}
	a.l.Log(context.Background(), lvl, msg, keyvals...)
}
