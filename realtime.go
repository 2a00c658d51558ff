package crewdesk

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ============================================================================
// Configuration
// ============================================================================

// RealtimeOptions configures the realtime sync core.
type RealtimeOptions struct {
	// BaseDelay is the first reconnect backoff; retry n waits
	// BaseDelay * 2^(n-1).
	BaseDelay time.Duration
	// MaxAttempts bounds consecutive automatic reconnect attempts before the
	// connection settles in StateFailed.
	MaxAttempts int
	// HeartbeatInterval is the gap between websocket pings.
	HeartbeatInterval time.Duration
	// PingTimeout is how long to wait for a pong before declaring the peer
	// dead.
	PingTimeout time.Duration
	// HandshakeTimeout bounds dial plus the authenticate frame.
	HandshakeTimeout time.Duration
	// SweepInterval is the typing-indicator eviction cadence.
	SweepInterval time.Duration
	// InboundBuffer is the capacity of the inbound event channel.
	InboundBuffer int
	// Logger receives connection lifecycle and dispatcher diagnostics.
	Logger *zap.Logger
}

func (o *RealtimeOptions) defaults() {
	if o.BaseDelay == 0 {
		o.BaseDelay = 1 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 5
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 25 * time.Second
	}
	if o.PingTimeout == 0 {
		o.PingTimeout = 10 * time.Second
	}
	if o.HandshakeTimeout == 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.SweepInterval == 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.InboundBuffer == 0 {
		o.InboundBuffer = 256
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// ============================================================================
// Realtime
// ============================================================================

// Realtime is the composition root of the sync core: connection manager,
// dispatcher, store, presence tracker, and outbound gateway, wired together
// and owned as one unit. Construct it once per session; there are no package
// level singletons.
type Realtime struct {
	conn       *ConnManager
	store      *Store
	presence   *PresenceTracker
	gateway    *Gateway
	dispatcher *dispatcher
}

// NewRealtime builds the sync core for the given websocket URL and starts
// its dispatch loop. Call Connect to go online and Close to tear everything
// down.
func NewRealtime(wsURL string, opts *RealtimeOptions) *Realtime {
	if opts == nil {
		opts = &RealtimeOptions{}
	}
	opts.defaults()

	conn := NewConnManager(wsURL, opts)
	store := NewStore()
	presence := NewPresenceTracker()
	d := newDispatcher(conn.Inbound(), store, presence, opts)
	d.start()

	return &Realtime{
		conn:       conn,
		store:      store,
		presence:   presence,
		gateway:    NewGateway(conn),
		dispatcher: d,
	}
}

// Connect goes online with the given bearer token. The token is opaque to
// the sync core; it comes from the auth subsystem.
func (r *Realtime) Connect(token string) error {
	return r.conn.Connect(token)
}

// Disconnect goes offline without stopping the dispatch loop; Connect may be
// called again.
func (r *Realtime) Disconnect() {
	r.conn.Disconnect()
}

// Close disconnects, stops the dispatch loop, and drops all change
// subscribers. The Realtime is not usable afterwards.
func (r *Realtime) Close() {
	r.conn.Disconnect()
	r.dispatcher.close()
	r.store.removeAll()
	r.presence.removeAll()
}

// State returns the current connection state.
func (r *Realtime) State() ConnState {
	return r.conn.State()
}

// Store returns the conversation/message store.
func (r *Realtime) Store() *Store {
	return r.store
}

// Presence returns the presence and typing tracker.
func (r *Realtime) Presence() *PresenceTracker {
	return r.presence
}

// Gateway returns the outbound command gateway.
func (r *Realtime) Gateway() *Gateway {
	return r.gateway
}

// OnStateChange registers a connection state observer.
func (r *Realtime) OnStateChange(h StateHandler) {
	r.conn.OnStateChange(h)
}

// OnMessageNew registers a handler invoked after a new message is merged.
func (r *Realtime) OnMessageNew(h func(Message)) {
	r.dispatcher.addMessageNew(h)
}

// OnMessageEdited registers a handler for edited messages.
func (r *Realtime) OnMessageEdited(h func(Message)) {
	r.dispatcher.addMessageEdited(h)
}

// OnMessageDeleted registers a handler for message deletions.
func (r *Realtime) OnMessageDeleted(h func(MessageDeletedEvent)) {
	r.dispatcher.addMessageDeleted(h)
}

// OnTyping registers a handler for typing:start events.
func (r *Realtime) OnTyping(h func(TypingStartEvent)) {
	r.dispatcher.addTyping(h)
}

// OnPresence registers a handler for single-user presence changes.
func (r *Realtime) OnPresence(h func(PresenceEvent)) {
	r.dispatcher.addPresence(h)
}

// OnAuthenticated registers a handler for the handshake acknowledgement.
func (r *Realtime) OnAuthenticated(h func(AuthenticatedEvent)) {
	r.dispatcher.addAuthenticated(h)
}

// ============================================================================
// Conversation helpers
// ============================================================================

// OpenConversation marks the conversation active, joins it on the wire, and
// marks it read locally and remotely. The local mark-read applies even when
// the wire command is rejected while offline.
func (r *Realtime) OpenConversation(ctx context.Context, conversationID string) error {
	r.store.SetActiveConversation(conversationID)
	r.store.MarkRead(conversationID)
	if err := r.gateway.JoinConversation(ctx, conversationID); err != nil {
		return err
	}
	return r.gateway.MarkRead(ctx, conversationID)
}

// CloseConversation clears the active conversation and leaves it on the
// wire.
func (r *Realtime) CloseConversation(ctx context.Context, conversationID string) error {
	if r.store.ActiveConversation() == conversationID {
		r.store.SetActiveConversation("")
	}
	return r.gateway.LeaveConversation(ctx, conversationID)
}
