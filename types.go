package crewdesk

import "time"

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a server-reported error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// ConversationType distinguishes one-to-one chats from group chats.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Participant is a member of a conversation.
type Participant struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	MimeType string `json:"mimeType,omitempty"`
	FileSize int64  `json:"fileSize,omitempty"`
}

// Message is a chat message. The id is server-assigned and globally unique;
// once stored, a message only changes through its Read/Edited flags or removal.
type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversationId"`
	SenderID       string       `json:"senderId"`
	Content        string       `json:"content"`
	CreatedAt      time.Time    `json:"createdAt"`
	Read           bool         `json:"read"`
	Edited         bool         `json:"edited,omitempty"`
	EditedAt       *time.Time   `json:"editedAt,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// Conversation is a direct or group chat as known to this client.
type Conversation struct {
	ID           string           `json:"id"`
	Type         ConversationType `json:"type"`
	Title        string           `json:"title,omitempty"`
	Participants []Participant    `json:"participants,omitempty"`
	LastMessage  *Message         `json:"lastMessage,omitempty"`
	UnreadCount  int              `json:"unreadCount"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// TypingIndicator records that a user is composing a message in a
// conversation. Entries decay after the typing TTL without a refresh.
type TypingIndicator struct {
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName,omitempty"`
	ConversationID string    `json:"conversationId"`
	Timestamp      time.Time `json:"timestamp"`
}

// OnlineUser is the latest known presence of a user. Presence is
// authoritative from the server; there is no local timeout to "offline".
type OnlineUser struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}
