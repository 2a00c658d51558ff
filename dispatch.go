package crewdesk

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ============================================================================
// Event Dispatcher
// ============================================================================

// dispatcher is the single entry point for inbound events. One goroutine
// consumes the inbound channel and applies every store and tracker mutation,
// so merges run one at a time in delivery order; the typing-eviction sweep is
// funneled through the same loop. A bad event is logged and dropped, never
// fatal to the pipeline.
type dispatcher struct {
	log      *zap.Logger
	store    *Store
	presence *PresenceTracker
	inbound  <-chan Envelope
	sweep    time.Duration

	hmu              sync.RWMutex
	onMessageNew     []func(Message)
	onMessageEdited  []func(Message)
	onMessageDeleted []func(MessageDeletedEvent)
	onTyping         []func(TypingStartEvent)
	onPresence       []func(PresenceEvent)
	onAuthenticated  []func(AuthenticatedEvent)

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newDispatcher(inbound <-chan Envelope, store *Store, presence *PresenceTracker, opts *RealtimeOptions) *dispatcher {
	return &dispatcher{
		log:      opts.Logger,
		store:    store,
		presence: presence,
		inbound:  inbound,
		sweep:    opts.SweepInterval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *dispatcher) start() {
	go d.loop()
}

func (d *dispatcher) close() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.done
}

func (d *dispatcher) loop() {
	defer close(d.done)
	ticker := time.NewTicker(d.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.presence.Sweep(time.Now())
		case env := <-d.inbound:
			d.handle(env)
		}
	}
}

func (d *dispatcher) handle(env Envelope) {
	event, err := decodeEvent(env)
	if err != nil {
		if errors.Is(err, errUnknownEvent) {
			d.log.Warn("dropping unknown event", zap.String("type", env.Type))
		} else {
			d.log.Warn("dropping malformed event",
				zap.String("type", env.Type), zap.Error(err))
		}
		return
	}

	switch ev := event.(type) {
	case MessageNewEvent:
		d.store.ApplyNewMessage(ev.Message)
		d.emitMessageNew(ev.Message)
	case MessageReadEvent:
		d.store.MarkMessageRead(ev.MessageID, ev.ConversationID)
	case MessageEditedEvent:
		d.store.UpsertMessage(ev.Message)
		d.emitMessageEdited(ev.Message)
	case MessageDeletedEvent:
		d.store.RemoveMessage(ev.MessageID, ev.ConversationID)
		d.emitMessageDeleted(ev)
	case TypingStartEvent:
		d.presence.SetTyping(ev.UserID, ev.UserName, ev.ConversationID)
		d.emitTyping(ev)
	case TypingStopEvent:
		d.presence.ClearTyping(ev.UserID, ev.ConversationID)
	case PresenceEvent:
		d.presence.SetOnline(ev.UserID, ev.Online)
		d.emitPresence(ev)
	case PresenceSnapshotEvent:
		d.presence.ReplaceSnapshot(ev.Users)
	case AuthenticatedEvent:
		d.emitAuthenticated(ev)
	}
}

// ============================================================================
// Typed handlers
// ============================================================================

func (d *dispatcher) addMessageNew(h func(Message)) {
	d.hmu.Lock()
	d.onMessageNew = append(d.onMessageNew, h)
	d.hmu.Unlock()
}

func (d *dispatcher) addMessageEdited(h func(Message)) {
	d.hmu.Lock()
	d.onMessageEdited = append(d.onMessageEdited, h)
	d.hmu.Unlock()
}

func (d *dispatcher) addMessageDeleted(h func(MessageDeletedEvent)) {
	d.hmu.Lock()
	d.onMessageDeleted = append(d.onMessageDeleted, h)
	d.hmu.Unlock()
}

func (d *dispatcher) addTyping(h func(TypingStartEvent)) {
	d.hmu.Lock()
	d.onTyping = append(d.onTyping, h)
	d.hmu.Unlock()
}

func (d *dispatcher) addPresence(h func(PresenceEvent)) {
	d.hmu.Lock()
	d.onPresence = append(d.onPresence, h)
	d.hmu.Unlock()
}

func (d *dispatcher) addAuthenticated(h func(AuthenticatedEvent)) {
	d.hmu.Lock()
	d.onAuthenticated = append(d.onAuthenticated, h)
	d.hmu.Unlock()
}

func (d *dispatcher) emitMessageNew(msg Message) {
	d.hmu.RLock()
	handlers := append([]func(Message){}, d.onMessageNew...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(msg) })
	}
}

func (d *dispatcher) emitMessageEdited(msg Message) {
	d.hmu.RLock()
	handlers := append([]func(Message){}, d.onMessageEdited...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(msg) })
	}
}

func (d *dispatcher) emitMessageDeleted(ev MessageDeletedEvent) {
	d.hmu.RLock()
	handlers := append([]func(MessageDeletedEvent){}, d.onMessageDeleted...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(ev) })
	}
}

func (d *dispatcher) emitTyping(ev TypingStartEvent) {
	d.hmu.RLock()
	handlers := append([]func(TypingStartEvent){}, d.onTyping...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(ev) })
	}
}

func (d *dispatcher) emitPresence(ev PresenceEvent) {
	d.hmu.RLock()
	handlers := append([]func(PresenceEvent){}, d.onPresence...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(ev) })
	}
}

func (d *dispatcher) emitAuthenticated(ev AuthenticatedEvent) {
	d.hmu.RLock()
	handlers := append([]func(AuthenticatedEvent){}, d.onAuthenticated...)
	d.hmu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(ev) })
	}
}

func safeCall(f func()) {
	defer func() { recover() }()
	f()
}
