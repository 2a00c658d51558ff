package crewdesk

import (
	"encoding/json"
	"errors"
	"testing"
)

func rawEnvelope(t *testing.T, eventType, payload string) Envelope {
	t.Helper()
	return Envelope{Type: eventType, Payload: json.RawMessage(payload)}
}

func TestDecodeEvent(t *testing.T) {
	t.Run("message:new", func(t *testing.T) {
		env := rawEnvelope(t, EventMessageNew,
			`{"id":"m1","conversationId":"c1","senderId":"u1","content":"hi","createdAt":"2026-08-30T10:00:00Z"}`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		msg, ok := ev.(MessageNewEvent)
		if !ok {
			t.Fatalf("expected MessageNewEvent, got %T", ev)
		}
		if msg.Message.ID != "m1" || msg.Message.ConversationID != "c1" {
			t.Errorf("unexpected message: %+v", msg.Message)
		}
	})

	t.Run("message:edited", func(t *testing.T) {
		env := rawEnvelope(t, EventMessageEdited,
			`{"id":"m1","conversationId":"c1","content":"fixed","edited":true}`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		edited, ok := ev.(MessageEditedEvent)
		if !ok {
			t.Fatalf("expected MessageEditedEvent, got %T", ev)
		}
		if !edited.Message.Edited {
			t.Error("expected edited flag to survive decoding")
		}
	})

	t.Run("message:read", func(t *testing.T) {
		env := rawEnvelope(t, EventMessageRead, `{"messageId":"m1","conversationId":"c1"}`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		if read := ev.(MessageReadEvent); read.MessageID != "m1" {
			t.Errorf("unexpected event: %+v", read)
		}
	})

	t.Run("typing:start", func(t *testing.T) {
		env := rawEnvelope(t, EventTypingStart, `{"userId":"u1","userName":"Amy","conversationId":"c1"}`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		typing := ev.(TypingStartEvent)
		if typing.UserName != "Amy" {
			t.Errorf("unexpected event: %+v", typing)
		}
	})

	t.Run("user:online and user:offline", func(t *testing.T) {
		ev, err := decodeEvent(rawEnvelope(t, EventUserOnline, `{"userId":"u1"}`))
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		if !ev.(PresenceEvent).Online {
			t.Error("user:online should decode with Online=true")
		}

		ev, err = decodeEvent(rawEnvelope(t, EventUserOffline, `{"userId":"u1"}`))
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		if ev.(PresenceEvent).Online {
			t.Error("user:offline should decode with Online=false")
		}
	})

	t.Run("users:online snapshot", func(t *testing.T) {
		env := rawEnvelope(t, EventUsersOnline, `[{"userId":"u1","isOnline":true},{"userId":"u2","isOnline":false}]`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		if snap := ev.(PresenceSnapshotEvent); len(snap.Users) != 2 {
			t.Errorf("expected 2 users, got %d", len(snap.Users))
		}
	})

	t.Run("authenticated", func(t *testing.T) {
		env := rawEnvelope(t, EventAuthenticated, `{"userId":"u1","username":"amy"}`)
		ev, err := decodeEvent(env)
		if err != nil {
			t.Fatalf("decodeEvent: %v", err)
		}
		if auth := ev.(AuthenticatedEvent); auth.Username != "amy" {
			t.Errorf("unexpected event: %+v", auth)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := decodeEvent(rawEnvelope(t, "reaction:add", `{"messageId":"m1"}`))
		if !errors.Is(err, errUnknownEvent) {
			t.Fatalf("expected errUnknownEvent, got %v", err)
		}
	})

	t.Run("malformed payloads", func(t *testing.T) {
		cases := []struct {
			name string
			env  Envelope
		}{
			{"not json", rawEnvelope(t, EventMessageNew, `{"id":`)},
			{"missing message id", rawEnvelope(t, EventMessageNew, `{"conversationId":"c1"}`)},
			{"missing conversation id", rawEnvelope(t, EventMessageRead, `{"messageId":"m1"}`)},
			{"missing user id", rawEnvelope(t, EventTypingStart, `{"conversationId":"c1"}`)},
			{"empty presence", rawEnvelope(t, EventUserOnline, `{}`)},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				ev, err := decodeEvent(tc.env)
				if err == nil {
					t.Fatalf("expected error, got event %+v", ev)
				}
				if errors.Is(err, errUnknownEvent) {
					t.Fatal("malformed payload must not be reported as unknown")
				}
			})
		}
	})
}
