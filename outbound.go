package crewdesk

import (
	"context"

	"github.com/google/uuid"
)

// ============================================================================
// Outbound Command Gateway
// ============================================================================

// Gateway translates local intent into wire commands. Every method rejects
// synchronously with ErrNotConnected while the connection is not in
// StateConnected — nothing is queued. Typing debounce is the caller's job;
// the gateway does not deduplicate repeated commands.
type Gateway struct {
	conn *ConnManager
}

// NewGateway creates a gateway bound to the connection manager.
func NewGateway(conn *ConnManager) *Gateway {
	return &Gateway{conn: conn}
}

// MessageDraft is the payload of an outbound message:send command.
type MessageDraft struct {
	ConversationID string       `json:"conversationId"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// SendMessage emits a message:send command. The server assigns the message
// id and echoes the message back as a message:new event.
func (g *Gateway) SendMessage(ctx context.Context, draft MessageDraft) error {
	return g.conn.Send(ctx, Command{
		Type:      CommandMessageSend,
		Payload:   draft,
		RequestID: uuid.NewString(),
	})
}

// StartTyping emits a typing:start command for the conversation.
func (g *Gateway) StartTyping(ctx context.Context, conversationID string) error {
	return g.conn.Send(ctx, Command{
		Type:    CommandTypingStart,
		Payload: map[string]string{"conversationId": conversationID},
	})
}

// StopTyping emits a typing:stop command for the conversation.
func (g *Gateway) StopTyping(ctx context.Context, conversationID string) error {
	return g.conn.Send(ctx, Command{
		Type:    CommandTypingStop,
		Payload: map[string]string{"conversationId": conversationID},
	})
}

// MarkRead emits a message:read command for the whole conversation.
func (g *Gateway) MarkRead(ctx context.Context, conversationID string) error {
	return g.conn.Send(ctx, Command{
		Type:    CommandMessageRead,
		Payload: map[string]string{"conversationId": conversationID},
	})
}

// JoinConversation subscribes this connection to a conversation's events.
func (g *Gateway) JoinConversation(ctx context.Context, conversationID string) error {
	return g.conn.Send(ctx, Command{
		Type:    CommandConversationJoin,
		Payload: map[string]string{"conversationId": conversationID},
	})
}

// LeaveConversation unsubscribes from a conversation. In-flight sends for
// the conversation are not cancelled.
func (g *Gateway) LeaveConversation(ctx context.Context, conversationID string) error {
	return g.conn.Send(ctx, Command{
		Type:    CommandConversationLeave,
		Payload: map[string]string{"conversationId": conversationID},
	})
}
