// Package crewdesk provides the Go client SDK for the CrewDesk workplace
// chat API.
//
// The package has two halves: a REST client for seeding and reconciling
// local state, and a realtime sync core that keeps conversations, messages,
// typing state, and presence consistent over a persistent websocket.
//
// Example:
//
//	client := crewdesk.NewClient(token)
//
//	rt := client.Realtime(nil)
//	defer rt.Close()
//	_ = rt.Connect(token)
//
//	rt.Store().On(crewdesk.ChangeMessages, func(event string, payload any) {
//		// re-render
//	})
//	_ = rt.Gateway().SendMessage(ctx, crewdesk.MessageDraft{
//		ConversationID: "conv-1", Content: "hello",
//	})
package crewdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.crewdesk.io"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the CrewDesk API client. REST access goes through the service
// sub-clients; Realtime constructs the websocket sync core.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *resty.Client
	log     *zap.Logger

	Conversations *ConversationsService
	Messages      *MessagesService
	Presence      *PresenceService
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a non-default deployment.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the REST request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.timeout = timeout }
}

// WithLogger sets the logger used by the client and, by default, by realtime
// cores it constructs.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a CrewDesk client authenticated with the given bearer
// token. The token's structure is opaque to the SDK.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(c.timeout).
		SetHeader("Accept", "application/json")
	if c.token != "" {
		c.http.SetAuthToken(c.token)
	}

	c.Conversations = &ConversationsService{client: c}
	c.Messages = &MessagesService{client: c}
	c.Presence = &PresenceService{client: c}
	return c
}

// SetToken replaces the bearer token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.token = token
	c.http.SetAuthToken(token)
}

// Result is the generic REST response envelope.
type Result struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *APIError       `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !result.OK {
		if result.Error != nil {
			return result.Error
		}
		return fmt.Errorf("request failed: HTTP %d", resp.StatusCode())
	}
	if out != nil && result.Data != nil {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// ============================================================================
// REST sub-clients
// ============================================================================

// ConversationsService manages conversations over REST.
type ConversationsService struct{ client *Client }

// List returns every conversation visible to the caller.
func (s *ConversationsService) List(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := s.client.do(ctx, "GET", "/api/chat/conversations", nil, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Get returns a single conversation.
func (s *ConversationsService) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	var conv Conversation
	if err := s.client.do(ctx, "GET", "/api/chat/conversations/"+conversationID, nil, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateDirect finds or creates the direct conversation with a user.
func (s *ConversationsService) CreateDirect(ctx context.Context, userID string) (*Conversation, error) {
	var conv Conversation
	body := map[string]string{"userId": userID}
	if err := s.client.do(ctx, "POST", "/api/chat/conversations/direct", body, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// MarkRead marks the conversation read server-side.
func (s *ConversationsService) MarkRead(ctx context.Context, conversationID string) error {
	return s.client.do(ctx, "POST", "/api/chat/conversations/"+conversationID+"/read", nil, nil, nil)
}

// PageOptions selects a slice of message history.
type PageOptions struct {
	Limit  int
	Before time.Time
}

func (o *PageOptions) query() map[string]string {
	if o == nil {
		return nil
	}
	q := map[string]string{}
	if o.Limit > 0 {
		q["limit"] = fmt.Sprintf("%d", o.Limit)
	}
	if !o.Before.IsZero() {
		q["before"] = o.Before.UTC().Format(time.RFC3339Nano)
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

// MessagesService manages message history over REST.
type MessagesService struct{ client *Client }

// History fetches a page of messages, oldest first.
func (s *MessagesService) History(ctx context.Context, conversationID string, opts *PageOptions) ([]Message, error) {
	var msgs []Message
	if err := s.client.do(ctx, "GET", "/api/chat/messages/"+conversationID, nil, opts.query(), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Send posts a message over REST. Most callers should prefer the realtime
// gateway; this path exists for one-shot tooling.
func (s *MessagesService) Send(ctx context.Context, conversationID, content string) (*Message, error) {
	var msg Message
	body := map[string]string{"content": content}
	if err := s.client.do(ctx, "POST", "/api/chat/messages/"+conversationID, body, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Edit replaces a message's content.
func (s *MessagesService) Edit(ctx context.Context, conversationID, messageID, content string) (*Message, error) {
	var msg Message
	body := map[string]string{"content": content}
	if err := s.client.do(ctx, "PATCH", "/api/chat/messages/"+conversationID+"/"+messageID, body, nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete removes a message.
func (s *MessagesService) Delete(ctx context.Context, conversationID, messageID string) error {
	return s.client.do(ctx, "DELETE", "/api/chat/messages/"+conversationID+"/"+messageID, nil, nil, nil)
}

// PresenceService reads presence over REST.
type PresenceService struct{ client *Client }

// Online returns the current presence snapshot. The realtime users:online
// event carries the same shape.
func (s *PresenceService) Online(ctx context.Context) ([]OnlineUser, error) {
	var users []OnlineUser
	if err := s.client.do(ctx, "GET", "/api/chat/presence/online", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ============================================================================
// Realtime factory
// ============================================================================

// WSURL returns the websocket endpoint derived from the base URL.
func (c *Client) WSURL() string {
	base := strings.Replace(c.baseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws"
}

// Realtime constructs the realtime sync core wired to this client. On every
// transition into StateConnected the store is reconciled from REST, since no
// ordering holds across a reconnect.
func (c *Client) Realtime(opts *RealtimeOptions) *Realtime {
	if opts == nil {
		opts = &RealtimeOptions{}
	}
	if opts.Logger == nil {
		opts.Logger = c.log
	}
	rt := NewRealtime(c.WSURL(), opts)
	rt.OnStateChange(func(s ConnState) {
		if s != StateConnected {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
			defer cancel()
			if err := c.Resync(ctx, rt); err != nil {
				c.log.Warn("resync after connect failed", zap.Error(err))
			}
		}()
	})
	return rt
}

// Resync refetches conversations (and recent history for the active
// conversation) and replaces the realtime store's view.
func (c *Client) Resync(ctx context.Context, rt *Realtime) error {
	convs, err := c.Conversations.List(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	rt.Store().ReplaceConversations(convs)

	if active := rt.Store().ActiveConversation(); active != "" {
		msgs, err := c.Messages.History(ctx, active, &PageOptions{Limit: 50})
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		rt.Store().SeedMessages(active, msgs)
	}
	return nil
}
