package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/twitch-ingest/auth"
)

// fakeIRC stands in for the gempir client. Connect fires the registered
// connect callback and blocks until Disconnect, unless connectErr is set.
type fakeIRC struct {
	mu         sync.Mutex
	onConnect  func()
	onMessage  func(twitch.PrivateMessage)
	joined     []string
	connectErr error

	done      chan struct{}
	closeOnce sync.Once
}

func newFakeIRC() *fakeIRC {
	return &fakeIRC{done: make(chan struct{})}
}

func (f *fakeIRC) OnConnect(fn func()) { f.onConnect = fn }

func (f *fakeIRC) OnPrivateMessage(fn func(twitch.PrivateMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onMessage = fn
}

func (f *fakeIRC) Join(channels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channels...)
}

func (f *fakeIRC) Connect() error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.onConnect()
	<-f.done
	return errors.New("connection closed")
}

func (f *fakeIRC) Disconnect() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *fakeIRC) deliver(msg twitch.PrivateMessage) {
	f.mu.Lock()
	fn := f.onMessage
	f.mu.Unlock()
	fn(msg)
}

func waitEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v event", kind)
		}
	}
}

func privMsg(channel, user, id, text string) twitch.PrivateMessage {
	return twitch.PrivateMessage{
		Channel: channel,
		User:    twitch.User{ID: id, Name: user},
		Message: text,
	}
}

func TestRunNoChannel(t *testing.T) {
	for _, channel := range []string{"", "#"} {
		c := New(Config{Channel: channel}, nil)
		if err := c.Run(context.Background()); !errors.Is(err, ErrNoChannel) {
			t.Errorf("Run(channel=%q) = %v, want ErrNoChannel", channel, err)
		}
	}
}

func TestRunMessageFlow(t *testing.T) {
	c := New(Config{Channel: "#somechannel", Username: "ingestbot"}, auth.NewStatic("tok"))

	fakes := make(chan *fakeIRC, 1)
	var gotToken string
	c.newClient = func(username, token string) ircClient {
		gotToken = token
		f := newFakeIRC()
		fakes <- f
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	waitEvent(t, c.Events(), EventConnected)
	if c.State() != Connected {
		t.Errorf("State() = %v, want Connected", c.State())
	}
	if gotToken != "oauth:tok" {
		t.Errorf("client token = %q, want oauth:tok", gotToken)
	}

	f := <-fakes
	f.mu.Lock()
	joined := append([]string(nil), f.joined...)
	f.mu.Unlock()
	if len(joined) != 1 || joined[0] != "somechannel" {
		t.Errorf("joined = %v, want [somechannel] with '#' stripped", joined)
	}

	f.deliver(privMsg("somechannel", "alice", "42", "hello"))
	ev := waitEvent(t, c.Events(), EventMessage)
	if ev.Message == nil {
		t.Fatal("message event carries no message")
	}
	if ev.Message.ChannelID != "somechannel" || ev.Message.Username != "alice" || ev.Message.Text != "hello" {
		t.Errorf("normalized message = %+v", ev.Message)
	}

	c.Stop()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() after Stop = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
	if c.State() != Disconnected {
		t.Errorf("State() after Stop = %v, want Disconnected", c.State())
	}
}

func TestSelfEchoSuppressed(t *testing.T) {
	c := New(Config{Channel: "#somechannel", Username: "ingestbot"}, auth.NewStatic("tok"))

	fakes := make(chan *fakeIRC, 1)
	c.newClient = func(username, token string) ircClient {
		f := newFakeIRC()
		fakes <- f
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	waitEvent(t, c.Events(), EventConnected)
	f := <-fakes

	// Case-insensitive match against the configured identity.
	f.deliver(privMsg("somechannel", "IngestBot", "1", "echo"))
	f.deliver(privMsg("somechannel", "alice", "42", "real"))

	ev := waitEvent(t, c.Events(), EventMessage)
	if ev.Message.Username != "alice" {
		t.Errorf("first delivered message from %q, want alice (self echo must be dropped)", ev.Message.Username)
	}
}

func TestAnonymousSessionNoFilter(t *testing.T) {
	c := New(Config{Channel: "somechannel"}, nil)

	fakes := make(chan *fakeIRC, 1)
	var gotUsername, gotToken string
	c.newClient = func(username, token string) ircClient {
		gotUsername, gotToken = username, token
		f := newFakeIRC()
		fakes <- f
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	waitEvent(t, c.Events(), EventConnected)
	if gotUsername != "" || gotToken != "" {
		t.Errorf("anonymous session got identity %q/%q, want empty", gotUsername, gotToken)
	}

	// Without a configured identity nothing is treated as self.
	f := <-fakes
	f.deliver(privMsg("somechannel", "ingestbot", "1", "hi"))
	ev := waitEvent(t, c.Events(), EventMessage)
	if ev.Message.Username != "ingestbot" {
		t.Errorf("message from %q, want ingestbot", ev.Message.Username)
	}
}

func TestTokenFailureRetries(t *testing.T) {
	c := New(Config{
		Channel:  "#somechannel",
		Username: "ingestbot",
		Backoff:  Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond},
	}, failingProvider{})

	var clientBuilds atomic.Int32
	c.newClient = func(username, token string) ircClient {
		clientBuilds.Add(1)
		return newFakeIRC()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	// Two error events prove the loop retries instead of giving up.
	ev := waitEvent(t, c.Events(), EventError)
	if ev.Err == nil {
		t.Error("error event carries no error")
	}
	waitEvent(t, c.Events(), EventError)

	if clientBuilds.Load() != 0 {
		t.Errorf("client built %d times despite token failures", clientBuilds.Load())
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("Run() after cancel = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConnectFailureBacksOff(t *testing.T) {
	c := New(Config{
		Channel: "somechannel",
		Backoff: Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond},
	}, nil)

	var clientBuilds atomic.Int32
	c.newClient = func(username, token string) ircClient {
		clientBuilds.Add(1)
		f := newFakeIRC()
		f.connectErr = errors.New("dial tcp: connection refused")
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	waitEvent(t, c.Events(), EventError)
	waitEvent(t, c.Events(), EventError)
	waitEvent(t, c.Events(), EventError)
	if clientBuilds.Load() < 3 {
		t.Errorf("client built %d times, want at least 3 retry sessions", clientBuilds.Load())
	}
}

func TestBackoffResetsOnConnect(t *testing.T) {
	c := New(Config{
		Channel: "somechannel",
		Backoff: Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond},
	}, nil)

	// First two sessions fail, third connects.
	var clientBuilds atomic.Int32
	fakes := make(chan *fakeIRC, 1)
	c.newClient = func(username, token string) ircClient {
		f := newFakeIRC()
		if clientBuilds.Add(1) < 3 {
			f.connectErr = errors.New("dial tcp: connection refused")
		} else {
			select {
			case fakes <- f:
			default:
			}
		}
		return f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()
	defer c.Stop()

	waitEvent(t, c.Events(), EventConnected)
	c.mu.Lock()
	attempt := c.backoff.Attempt()
	c.mu.Unlock()
	if attempt != 0 {
		t.Errorf("backoff attempt after successful connect = %d, want 0", attempt)
	}
}

func TestStopIdempotent(t *testing.T) {
	c := New(Config{Channel: "somechannel"}, nil)
	c.Stop()
	c.Stop()

	ev := waitEvent(t, c.Events(), EventDisconnected)
	if ev.Reason != "manual" {
		t.Errorf("disconnect reason = %q, want manual", ev.Reason)
	}
	// The stop channel is closed once; Run after Stop exits immediately.
	if err := c.Run(context.Background()); err != nil {
		t.Errorf("Run() after Stop = %v, want nil", err)
	}
}

type failingProvider struct{}

func (failingProvider) Token(ctx context.Context) (string, error) {
	return "", errors.New("identity provider unavailable")
}
