// Package ingest wires the chat connection's event stream to the Kafka
// publisher. It is the single consumer of the connection's events and owns
// graceful shutdown ordering: the publisher comes up before the chat session
// so no event ever arrives without a sink, and goes down after it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/twitch-ingest/chat"
	"github.com/onnwee/twitch-ingest/message"
)

// Publisher is the sink side of the pipeline.
type Publisher interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, msg message.Message) error
	Close()
}

// Source is the chat side of the pipeline.
type Source interface {
	Run(ctx context.Context) error
	Stop()
	Events() <-chan chat.Event
}

// Service pumps events from the Source into the Publisher. Per-message
// failures are logged and dropped; they never stop the pump or the process.
type Service struct {
	src Source
	pub Publisher

	shutdown sync.Once
}

// New builds the orchestrator.
func New(src Source, pub Publisher) *Service {
	return &Service{src: src, pub: pub}
}

// Run connects the publisher, starts the chat connection, and processes
// events until ctx is canceled or the source exits. A publisher connect
// failure or a source configuration error is returned to the caller, which
// treats it as fatal.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("connecting to kafka", slog.String("component", "ingest"))
	if err := s.pub.Connect(ctx); err != nil {
		return fmt.Errorf("connect kafka producer: %w", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- s.src.Run(ctx) }()

	slog.Info("ingestion service started", slog.String("component", "ingest"))
	for {
		select {
		case <-ctx.Done():
			s.Shutdown()
			<-runErr
			return nil
		case err := <-runErr:
			s.Shutdown()
			return err
		case ev := <-s.src.Events():
			s.handleEvent(ctx, ev)
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, ev chat.Event) {
	switch ev.Kind {
	case chat.EventMessage:
		msg := *ev.Message
		if err := s.pub.Send(ctx, msg); err != nil {
			// Isolated failure: log, drop, keep consuming.
			slog.Error("failed to publish chat message",
				slog.String("component", "ingest"),
				slog.String("channel_id", msg.ChannelID),
				slog.String("username", msg.Username),
				slog.Any("err", err))
			return
		}
		slog.Debug("message published",
			slog.String("component", "ingest"),
			slog.String("channel_id", msg.ChannelID),
			slog.String("username", msg.Username))
	case chat.EventConnected:
		slog.Info("twitch connection established", slog.String("component", "ingest"))
	case chat.EventDisconnected:
		slog.Warn("twitch connection lost", slog.String("component", "ingest"),
			slog.String("reason", ev.Reason))
	case chat.EventError:
		slog.Error("twitch client error", slog.String("component", "ingest"),
			slog.Any("err", ev.Err))
	}
}

// Shutdown stops the chat connection, then the publisher. Safe to invoke
// more than once, including concurrently with Run's own shutdown path.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() {
		slog.Info("shutting down ingestion service", slog.String("component", "ingest"))
		s.src.Stop()
		s.pub.Close()
	})
}
