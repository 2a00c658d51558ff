package crewdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ============================================================================
// Connection State
// ============================================================================

// ConnState is the lifecycle state of the realtime connection. It is owned
// exclusively by the ConnManager; every other component only reads it.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateFailed       ConnState = "failed"
)

// StateHandler observes connection state transitions.
type StateHandler func(ConnState)

// ============================================================================
// Connection Manager
// ============================================================================

// ConnManager owns the persistent websocket connection: dial, authenticate
// handshake, loss detection, and reconnection with exponential backoff.
// Inbound frames are decoded into envelopes and pushed onto a single channel
// consumed by the dispatcher; the manager never touches store or tracker
// state itself.
type ConnManager struct {
	url     string
	opts    *RealtimeOptions
	log     *zap.Logger
	inbound chan Envelope

	hmu     sync.RWMutex
	onState []StateHandler

	mu      sync.Mutex
	state   ConnState
	conn    *websocket.Conn
	token   string
	attempt int
	stop    chan struct{}
}

// NewConnManager creates a manager for the given websocket URL. The manager
// is idle until Connect is called.
func NewConnManager(wsURL string, opts *RealtimeOptions) *ConnManager {
	opts.defaults()
	return &ConnManager{
		url:     wsURL,
		opts:    opts,
		log:     opts.Logger,
		inbound: make(chan Envelope, opts.InboundBuffer),
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Inbound returns the channel of decoded wire envelopes. It is consumed by
// exactly one dispatcher loop.
func (m *ConnManager) Inbound() <-chan Envelope {
	return m.inbound
}

// OnStateChange registers a handler invoked on every state transition.
func (m *ConnManager) OnStateChange(h StateHandler) {
	m.hmu.Lock()
	m.onState = append(m.onState, h)
	m.hmu.Unlock()
}

func (m *ConnManager) emitState(s ConnState) {
	m.hmu.RLock()
	handlers := append([]StateHandler{}, m.onState...)
	m.hmu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() { recover() }()
			h(s)
		}()
	}
}

// Connect starts a connection session with the given bearer token. The
// handshake runs in the background; progress is observable through State and
// OnStateChange. Calling Connect while a session is already running is a
// no-op. A manual Connect after StateFailed resets the attempt counter and
// retries immediately.
func (m *ConnManager) Connect(token string) error {
	m.mu.Lock()
	switch m.state {
	case StateConnecting, StateConnected, StateReconnecting:
		m.mu.Unlock()
		return nil
	}
	m.token = token
	m.attempt = 0
	stop := make(chan struct{})
	m.stop = stop
	m.state = StateConnecting
	m.mu.Unlock()

	m.emitState(StateConnecting)
	go m.run(stop)
	return nil
}

// Disconnect tears the session down: it cancels any in-flight backoff timer,
// closes the socket, and transitions to StateDisconnected regardless of the
// current state. Idempotent.
func (m *ConnManager) Disconnect() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	conn := m.conn
	m.conn = nil
	changed := m.state != StateDisconnected
	m.state = StateDisconnected
	m.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	if changed {
		m.emitState(StateDisconnected)
	}
}

// Send writes a command to the server. It rejects synchronously with
// ErrNotConnected unless the state is StateConnected.
func (m *ConnManager) Send(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// ============================================================================
// Session loop
// ============================================================================

// backoffDelay returns the wait before retry number attempt (1-based):
// base * 2^(attempt-1).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

// run drives one session: dial, read until the connection drops, back off,
// redial. It exits on clean disconnects, on Disconnect, or after the attempt
// budget is exhausted.
func (m *ConnManager) run(stop chan struct{}) {
	for {
		conn, auth, err := m.dial()
		if err == nil {
			m.mu.Lock()
			if m.stop != stop {
				m.mu.Unlock()
				conn.Close(websocket.StatusNormalClosure, "superseded")
				return
			}
			m.conn = conn
			m.attempt = 0
			m.state = StateConnected
			m.mu.Unlock()
			m.emitState(StateConnected)
			m.log.Info("realtime connected", zap.String("user", auth.UserID))

			hbCtx, hbCancel := context.WithCancel(context.Background())
			go m.heartbeatLoop(hbCtx, conn)
			clean := m.readLoop(conn, stop)
			hbCancel()
			conn.Close(websocket.StatusNormalClosure, "")

			m.mu.Lock()
			current := m.stop == stop
			m.conn = nil
			m.mu.Unlock()
			if !current {
				return
			}
			if clean {
				m.mu.Lock()
				m.state = StateDisconnected
				m.stop = nil
				m.mu.Unlock()
				m.emitState(StateDisconnected)
				return
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
			m.log.Warn("handshake failed", zap.Error(err))
		}

		m.mu.Lock()
		if m.stop != stop {
			m.mu.Unlock()
			return
		}
		m.attempt++
		attempt := m.attempt
		if attempt > m.opts.MaxAttempts {
			m.state = StateFailed
			m.stop = nil
			m.mu.Unlock()
			m.emitState(StateFailed)
			m.log.Error("reconnect budget exhausted, manual Connect required",
				zap.Int("attempts", m.opts.MaxAttempts))
			return
		}
		m.state = StateReconnecting
		m.mu.Unlock()
		m.emitState(StateReconnecting)

		delay := backoffDelay(m.opts.BaseDelay, attempt)
		m.log.Info("reconnecting",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		timer := time.NewTimer(delay)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// dial opens the websocket and performs the authenticate handshake: the first
// frame from the server must be an "authenticated" envelope.
func (m *ConnManager) dial() (*websocket.Conn, *AuthenticatedEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	defer cancel()

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	wsURL := m.url
	if token != "" {
		wsURL += "?token=" + url.QueryEscape(token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket dial: %w", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, nil, fmt.Errorf("read handshake: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != EventAuthenticated {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, nil, fmt.Errorf("expected %q handshake, got %q", EventAuthenticated, env.Type)
	}
	var auth AuthenticatedEvent
	if err := json.Unmarshal(env.Payload, &auth); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, nil, fmt.Errorf("decode handshake: %w", err)
	}
	return conn, &auth, nil
}

// readLoop pumps frames into the inbound channel until the connection fails.
// It reports whether the disconnect was clean: a server close with
// StatusNormalClosure or StatusGoingAway is terminal and must not trigger an
// automatic reconnect.
func (m *ConnManager) readLoop(conn *websocket.Conn, stop chan struct{}) bool {
	ctx := context.Background()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			select {
			case <-stop:
				return true
			default:
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				m.log.Info("server closed connection", zap.Error(err))
				return true
			}
			m.log.Warn("connection lost", zap.Error(err))
			return false
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			m.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		select {
		case m.inbound <- env:
		case <-stop:
			return true
		}
	}
}

// heartbeatLoop pings the server at the configured interval and force-closes
// the socket on timeout so the read loop notices the dead peer.
func (m *ConnManager) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, m.opts.PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					m.log.Warn("heartbeat timeout, closing connection", zap.Error(err))
					conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				}
				return
			}
		}
	}
}
