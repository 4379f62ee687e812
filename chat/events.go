package chat

import "github.com/onnwee/twitch-ingest/message"

// EventKind discriminates the typed events a Connection emits.
type EventKind int

const (
	// EventConnected signals an authenticated session was established.
	EventConnected EventKind = iota
	// EventDisconnected signals the session ended; Reason is "manual" for
	// operator-initiated stops.
	EventDisconnected
	// EventError carries a connection-level failure (auth or transport).
	// The connection keeps retrying; the event is informational.
	EventError
	// EventMessage carries a normalized chat record.
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	case EventMessage:
		return "message"
	}
	return "unknown"
}

// Event is the single notification type flowing from Connection to its
// consumer. Exactly one of Err or Message is set depending on Kind.
type Event struct {
	Kind    EventKind
	Reason  string
	Err     error
	Message *message.Message
}
