package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/twitch-ingest/auth"
	"github.com/onnwee/twitch-ingest/telemetry"
)

// ErrNoChannel is returned by Run when no target channel is configured.
// It is a startup configuration error, not a retryable condition.
var ErrNoChannel = errors.New("no twitch channel configured")

// State is the connection lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// ircClient is the slice of the gempir client the connection drives. Tests
// substitute a fake.
type ircClient interface {
	OnConnect(func())
	OnPrivateMessage(func(twitch.PrivateMessage))
	Join(...string)
	Connect() error
	Disconnect() error
}

// Config holds the connection settings, passed in explicitly by the caller.
type Config struct {
	// Channel is the target chat channel (leading '#' tolerated).
	Channel string
	// Username is the bot identity. When set, inbound messages from it are
	// suppressed (self-echo) and the session authenticates as it. When empty
	// the session is anonymous read-only and no self-filtering occurs.
	Username string
	// Backoff overrides the reconnect policy; zero values mean 1s base, 60s cap.
	Backoff Backoff
}

// Connection owns the live IRC session and retries it forever with capped
// exponential backoff until the context is canceled or Stop is called.
type Connection struct {
	cfg    Config
	tokens auth.TokenProvider

	events chan Event
	stop   chan struct{}
	once   sync.Once
	state  atomic.Int32

	mu      sync.Mutex
	backoff Backoff

	// newClient is a test seam; the default builds a gempir client.
	newClient func(username, token string) ircClient
}

// New builds a Connection. tokens may be nil when Username is empty
// (anonymous read-only session).
func New(cfg Config, tokens auth.TokenProvider) *Connection {
	return &Connection{
		cfg:       cfg,
		tokens:    tokens,
		events:    make(chan Event, 256),
		stop:      make(chan struct{}),
		backoff:   cfg.Backoff,
		newClient: defaultNewClient,
	}
}

func defaultNewClient(username, token string) ircClient {
	if username == "" {
		return twitch.NewAnonymousClient()
	}
	return twitch.NewClient(username, token)
}

// Events returns the typed event stream. The channel is bounded; the
// orchestrator is expected to be the single, prompt consumer.
func (c *Connection) Events() <-chan Event { return c.events }

// State returns the current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Run drives the session until ctx is canceled or Stop is called. Session
// failures (token acquisition, transport) are surfaced as Error events and
// retried; only a missing channel aborts immediately.
func (c *Connection) Run(ctx context.Context) error {
	if strings.TrimPrefix(c.cfg.Channel, "#") == "" {
		return ErrNoChannel
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			return nil
		default:
		}

		c.setState(Connecting)
		slog.Info("connecting to twitch irc", slog.String("component", "chat"),
			slog.String("channel", c.cfg.Channel))
		err := c.session(ctx)
		c.setState(Disconnected)

		if ctx.Err() != nil || c.stopping() {
			return nil
		}

		slog.Error("twitch session ended", slog.String("component", "chat"), slog.Any("err", err))
		c.emit(Event{Kind: EventError, Err: err})

		c.mu.Lock()
		attempt := c.backoff.Attempt()
		delay := c.backoff.Next()
		c.mu.Unlock()
		telemetry.IncChatReconnect()
		slog.Info("scheduling reconnect", slog.String("component", "chat"),
			slog.Int("attempt", attempt+1), slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-c.stop:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session opens one IRC session and blocks until it ends.
func (c *Connection) session(ctx context.Context) error {
	token := ""
	if c.cfg.Username != "" {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("acquire token: %w", err)
		}
		token = "oauth:" + tok
	}

	client := c.newClient(c.cfg.Username, token)
	client.OnConnect(func() {
		c.setState(Connected)
		c.mu.Lock()
		c.backoff.Reset()
		c.mu.Unlock()
		slog.Info("connected to twitch irc", slog.String("component", "chat"),
			slog.String("channel", c.cfg.Channel))
		c.emit(Event{Kind: EventConnected})
	})
	client.OnPrivateMessage(c.handlePrivateMessage)
	client.Join(strings.TrimPrefix(c.cfg.Channel, "#"))

	// Unblock Connect when the caller goes away.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.stop:
		case <-sessionDone:
			return
		}
		if err := client.Disconnect(); err != nil {
			slog.Debug("irc disconnect", slog.String("component", "chat"), slog.Any("err", err))
		}
	}()

	return client.Connect()
}

func (c *Connection) handlePrivateMessage(msg twitch.PrivateMessage) {
	telemetry.IncChatMessageReceived()

	if c.cfg.Username != "" && strings.EqualFold(msg.User.Name, c.cfg.Username) {
		telemetry.IncChatMessageFiltered()
		return
	}

	rec := Normalize(rawFromPrivateMessage(msg))
	if rec == nil {
		telemetry.IncChatParseFailure()
		return
	}
	c.emit(Event{Kind: EventMessage, Message: rec})
}

// rawFromPrivateMessage maps a gempir message onto the loose inbound shape.
func rawFromPrivateMessage(msg twitch.PrivateMessage) RawEvent {
	emotes := make(map[string][]string, len(msg.Emotes))
	for _, e := range msg.Emotes {
		if e != nil {
			emotes[e.ID] = nil
		}
	}
	return RawEvent{
		Channel: msg.Channel,
		Message: msg.Message,
		Emotes:  emotes,
		User:    &RawUser{Login: msg.User.Name, ID: msg.User.ID},
	}
}

// Stop ends the session and the retry loop. It is idempotent; the first call
// emits a Disconnected event with reason "manual".
func (c *Connection) Stop() {
	c.once.Do(func() {
		// Deliver before closing stop so the consumer sees the reason.
		select {
		case c.events <- Event{Kind: EventDisconnected, Reason: "manual"}:
		default:
		}
		close(c.stop)
		c.setState(Disconnected)
	})
}

func (c *Connection) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Connection) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.stop:
	}
}

func (c *Connection) setState(s State) {
	c.state.Store(int32(s))
	telemetry.SetChatConnected(s == Connected)
}
