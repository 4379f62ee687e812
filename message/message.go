// Package message defines the canonical chat record published to Kafka.
// Records are created by the normalizer at receipt time and are immutable
// afterwards; the wire form is the JSON encoding of Message.
package message

// Message is the single normalized shape for a chat message, independent of
// the raw IRC event it came from. Timestamp is assigned at normalization time
// (Unix milliseconds), not taken from the source event.
type Message struct {
	ChannelID   string   `json:"channel_id"`
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Text        string   `json:"message"`
	TimestampMs int64    `json:"timestamp"`
	EmoteIDs    []string `json:"emotes"`
}

// Valid reports whether the message satisfies the publish contract:
// non-empty channel, username and text, a positive timestamp, and a non-nil
// (possibly empty) emote list. The normalizer permits empty text, so the
// publish path uses this as its final guard.
func (m Message) Valid() bool {
	return m.ChannelID != "" &&
		m.Username != "" &&
		m.Text != "" &&
		m.TimestampMs > 0 &&
		m.EmoteIDs != nil
}
