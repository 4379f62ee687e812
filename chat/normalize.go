package chat

import (
	"log/slog"
	"strings"
	"time"

	"github.com/onnwee/twitch-ingest/message"
)

// timeNow is swapped in tests to pin normalization timestamps.
var timeNow = time.Now

// RawChannel is the object form of a channel identifier.
type RawChannel struct {
	Login string
}

// RawText is the object form of a message body.
type RawText struct {
	Text string
}

// RawUser is the nested user object some event shapes carry.
type RawUser struct {
	Login string
	ID    string
}

// RawEvent is the heterogeneous inbound chat event. Older event shapes carry
// the channel as a bare "#name" string and flat username/user-id fields; newer
// ones use nested objects. It is untrusted input: Normalize consumes it once
// and either produces a canonical record or rejects it.
type RawEvent struct {
	Channel  any // string ("#name") or RawChannel
	Username string
	UserID   string
	Message  any // string or RawText
	Emotes   map[string][]string
	User     *RawUser
}

// Normalize converts a raw event into a canonical message, or returns nil if
// no channel or username can be resolved. The record timestamp is the call
// time, not the event's own time field, which is inconsistent across event
// source versions. Empty message text is passed through; the publish-side
// validation is the final guard.
func Normalize(raw RawEvent) *message.Message {
	channelID := resolveChannel(raw.Channel)
	if channelID == "" {
		slog.Warn("chat event missing channel", slog.String("component", "chat"))
		return nil
	}

	username := raw.Username
	if username == "" && raw.User != nil {
		username = raw.User.Login
	}
	if username == "" {
		slog.Warn("chat event missing username", slog.String("component", "chat"),
			slog.String("channel", channelID))
		return nil
	}

	userID := raw.UserID
	if userID == "" && raw.User != nil {
		userID = raw.User.ID
	}

	emotes := make([]string, 0, len(raw.Emotes))
	for id := range raw.Emotes {
		emotes = append(emotes, id)
	}

	return &message.Message{
		ChannelID:   channelID,
		UserID:      userID,
		Username:    username,
		Text:        resolveText(raw.Message),
		TimestampMs: timeNow().UnixMilli(),
		EmoteIDs:    emotes,
	}
}

func resolveChannel(v any) string {
	switch ch := v.(type) {
	case string:
		return strings.TrimPrefix(ch, "#")
	case RawChannel:
		return ch.Login
	case *RawChannel:
		if ch != nil {
			return ch.Login
		}
	}
	return ""
}

func resolveText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case RawText:
		return t.Text
	case *RawText:
		if t != nil {
			return t.Text
		}
	}
	return ""
}
