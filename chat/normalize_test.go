package chat

import (
	"testing"
	"time"
)

func pinTime(t *testing.T, at time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = orig })
}

func TestNormalizeLegacyShape(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	pinTime(t, now)

	got := Normalize(RawEvent{
		Channel:  "#somechannel",
		Username: "alice",
		UserID:   "42",
		Message:  "hello world",
		Emotes:   map[string][]string{"25": {"0-4"}},
	})
	if got == nil {
		t.Fatal("Normalize() = nil, want message")
	}
	if got.ChannelID != "somechannel" {
		t.Errorf("ChannelID = %q, want somechannel", got.ChannelID)
	}
	if got.Username != "alice" || got.UserID != "42" {
		t.Errorf("user = %q/%q, want alice/42", got.Username, got.UserID)
	}
	if got.Text != "hello world" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.TimestampMs != now.UnixMilli() {
		t.Errorf("TimestampMs = %d, want %d", got.TimestampMs, now.UnixMilli())
	}
	if len(got.EmoteIDs) != 1 || got.EmoteIDs[0] != "25" {
		t.Errorf("EmoteIDs = %v, want [25]", got.EmoteIDs)
	}
}

func TestNormalizeObjectShape(t *testing.T) {
	pinTime(t, time.UnixMilli(1700000000000))

	got := Normalize(RawEvent{
		Channel: RawChannel{Login: "somechannel"},
		Message: RawText{Text: "hi"},
		User:    &RawUser{Login: "bob", ID: "77"},
	})
	if got == nil {
		t.Fatal("Normalize() = nil, want message")
	}
	if got.ChannelID != "somechannel" {
		t.Errorf("ChannelID = %q", got.ChannelID)
	}
	if got.Username != "bob" || got.UserID != "77" {
		t.Errorf("user = %q/%q, want bob/77", got.Username, got.UserID)
	}
	if got.Text != "hi" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestNormalizePointerShapes(t *testing.T) {
	pinTime(t, time.UnixMilli(1700000000000))

	got := Normalize(RawEvent{
		Channel:  &RawChannel{Login: "c"},
		Username: "u",
		Message:  &RawText{Text: "t"},
	})
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.ChannelID != "c" || got.Text != "t" {
		t.Errorf("got %+v", got)
	}
}

func TestNormalizeFlatFieldsWinOverNested(t *testing.T) {
	pinTime(t, time.UnixMilli(1700000000000))

	got := Normalize(RawEvent{
		Channel:  "#c",
		Username: "flat",
		UserID:   "1",
		User:     &RawUser{Login: "nested", ID: "2"},
	})
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.Username != "flat" || got.UserID != "1" {
		t.Errorf("user = %q/%q, want flat/1", got.Username, got.UserID)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
	}{
		{"no channel", RawEvent{Username: "alice", Message: "hi"}},
		{"empty channel string", RawEvent{Channel: "#", Username: "alice"}},
		{"nil channel pointer", RawEvent{Channel: (*RawChannel)(nil), Username: "alice"}},
		{"unknown channel type", RawEvent{Channel: 42, Username: "alice"}},
		{"no username anywhere", RawEvent{Channel: "#c", Message: "hi"}},
		{"empty nested login", RawEvent{Channel: "#c", User: &RawUser{ID: "9"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != nil {
				t.Errorf("Normalize() = %+v, want nil", got)
			}
		})
	}
}

func TestNormalizePermitsEmptyText(t *testing.T) {
	pinTime(t, time.UnixMilli(1700000000000))

	got := Normalize(RawEvent{Channel: "#c", Username: "alice"})
	if got == nil {
		t.Fatal("Normalize() = nil, want message with empty text")
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
	// Empty text still fails final validation downstream.
	if got.Valid() {
		t.Error("empty-text message must not pass Valid()")
	}
}

func TestNormalizeEmotesNeverNil(t *testing.T) {
	pinTime(t, time.UnixMilli(1700000000000))

	got := Normalize(RawEvent{Channel: "#c", Username: "alice", Message: "hi"})
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.EmoteIDs == nil {
		t.Error("EmoteIDs = nil, want empty slice")
	}
	if len(got.EmoteIDs) != 0 {
		t.Errorf("EmoteIDs = %v, want empty", got.EmoteIDs)
	}
}
