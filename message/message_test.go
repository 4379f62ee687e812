package message

import (
	"encoding/json"
	"testing"
)

func validMessage() Message {
	return Message{
		ChannelID:   "somechannel",
		UserID:      "12345",
		Username:    "bob",
		Text:        "hi",
		TimestampMs: 1700000000000,
		EmoteIDs:    []string{"25"},
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
		want   bool
	}{
		{"well formed", func(m *Message) {}, true},
		{"empty emotes ok", func(m *Message) { m.EmoteIDs = []string{} }, true},
		{"missing channel", func(m *Message) { m.ChannelID = "" }, false},
		{"missing username", func(m *Message) { m.Username = "" }, false},
		{"empty text", func(m *Message) { m.Text = "" }, false},
		{"zero timestamp", func(m *Message) { m.TimestampMs = 0 }, false},
		{"negative timestamp", func(m *Message) { m.TimestampMs = -5 }, false},
		{"nil emotes", func(m *Message) { m.EmoteIDs = nil }, false},
		{"missing user id ok", func(m *Message) { m.UserID = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMessage()
			tt.mutate(&m)
			if got := m.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWireSchema(t *testing.T) {
	data, err := json.Marshal(validMessage())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"channel_id", "user_id", "username", "message", "timestamp", "emotes"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("wire payload missing field %q", key)
		}
	}
	if len(fields) != 6 {
		t.Errorf("wire payload has %d fields, want 6: %v", len(fields), fields)
	}
	if fields["message"] != "hi" {
		t.Errorf("text serialized under wrong key: %v", fields)
	}
}
