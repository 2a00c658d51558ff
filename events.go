package crewdesk

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Wire Format
// ============================================================================

// Inbound event names (server → client).
const (
	EventMessageNew     = "message:new"
	EventMessageRead    = "message:read"
	EventMessageEdited  = "message:edited"
	EventMessageDeleted = "message:deleted"
	EventTypingStart    = "typing:start"
	EventTypingStop     = "typing:stop"
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventUsersOnline    = "users:online"
	EventAuthenticated  = "authenticated"
)

// Outbound command names (client → server).
const (
	CommandMessageSend       = "message:send"
	CommandMessageRead       = "message:read"
	CommandTypingStart       = "typing:start"
	CommandTypingStop        = "typing:stop"
	CommandConversationJoin  = "conversation:join"
	CommandConversationLeave = "conversation:leave"
)

// Envelope is the wire format for all inbound real-time events.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Command is a client-to-server command.
type Command struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	RequestID string      `json:"requestId,omitempty"`
}

// ============================================================================
// Decoded Events
// ============================================================================

// Event is a decoded inbound event. The concrete types below form a closed
// set; the dispatcher switches over them to apply the matching operation.
type Event interface {
	eventType() string
}

// MessageNewEvent carries a newly delivered message.
type MessageNewEvent struct {
	Message Message
}

// MessageReadEvent marks a single message as read.
type MessageReadEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// MessageEditedEvent carries the full replacement for an edited message.
type MessageEditedEvent struct {
	Message Message
}

// MessageDeletedEvent removes a message.
type MessageDeletedEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// TypingStartEvent starts or refreshes a typing indicator.
type TypingStartEvent struct {
	UserID         string `json:"userId"`
	UserName       string `json:"userName,omitempty"`
	ConversationID string `json:"conversationId"`
}

// TypingStopEvent explicitly clears a typing indicator.
type TypingStopEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// PresenceEvent sets a single user online or offline.
type PresenceEvent struct {
	UserID string `json:"userId"`
	Online bool   `json:"-"`
}

// PresenceSnapshotEvent wholesale-replaces the known online set. Sent by the
// server on (re)connect to correct drift accumulated while disconnected.
type PresenceSnapshotEvent struct {
	Users []OnlineUser
}

// AuthenticatedEvent is the handshake acknowledgement.
type AuthenticatedEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (MessageNewEvent) eventType() string       { return EventMessageNew }
func (MessageReadEvent) eventType() string      { return EventMessageRead }
func (MessageEditedEvent) eventType() string    { return EventMessageEdited }
func (MessageDeletedEvent) eventType() string   { return EventMessageDeleted }
func (TypingStartEvent) eventType() string      { return EventTypingStart }
func (TypingStopEvent) eventType() string       { return EventTypingStop }
func (e PresenceEvent) eventType() string {
	if e.Online {
		return EventUserOnline
	}
	return EventUserOffline
}
func (PresenceSnapshotEvent) eventType() string { return EventUsersOnline }
func (AuthenticatedEvent) eventType() string    { return EventAuthenticated }

// ============================================================================
// Decoding
// ============================================================================

// decodeEvent turns a wire envelope into a typed event. It returns
// errUnknownEvent for event names outside the catalogue and a descriptive
// error for payloads missing required fields; callers drop both without
// tearing down the pipeline.
func decodeEvent(env Envelope) (Event, error) {
	switch env.Type {
	case EventMessageNew, EventMessageEdited:
		var msg Message
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if msg.ID == "" || msg.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing message id or conversation id", env.Type)
		}
		if env.Type == EventMessageNew {
			return MessageNewEvent{Message: msg}, nil
		}
		return MessageEditedEvent{Message: msg}, nil

	case EventMessageRead:
		var ev MessageReadEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if ev.MessageID == "" || ev.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing message id or conversation id", env.Type)
		}
		return ev, nil

	case EventMessageDeleted:
		var ev MessageDeletedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if ev.MessageID == "" || ev.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing message id or conversation id", env.Type)
		}
		return ev, nil

	case EventTypingStart:
		var ev TypingStartEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if ev.UserID == "" || ev.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing user id or conversation id", env.Type)
		}
		return ev, nil

	case EventTypingStop:
		var ev TypingStopEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if ev.UserID == "" || ev.ConversationID == "" {
			return nil, fmt.Errorf("decode %s: missing user id or conversation id", env.Type)
		}
		return ev, nil

	case EventUserOnline, EventUserOffline:
		var ev PresenceEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if ev.UserID == "" {
			return nil, fmt.Errorf("decode %s: missing user id", env.Type)
		}
		ev.Online = env.Type == EventUserOnline
		return ev, nil

	case EventUsersOnline:
		var users []OnlineUser
		if err := json.Unmarshal(env.Payload, &users); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return PresenceSnapshotEvent{Users: users}, nil

	case EventAuthenticated:
		var ev AuthenticatedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ev, nil
	}

	return nil, errUnknownEvent
}
