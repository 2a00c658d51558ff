package crewdesk

import "sync"

// ChangeHandler observes named change notifications from the store and the
// presence tracker.
type ChangeHandler func(event string, payload any)

// Change notification names emitted to subscribers.
const (
	ChangeConversations = "conversations"
	ChangeMessages      = "messages"
	ChangeUnread        = "unread"
	ChangeTyping        = "typing"
	ChangePresence      = "presence"
)

type changeEmitter struct {
	mu        sync.RWMutex
	listeners map[string][]ChangeHandler
}

// On registers a handler for the named change. An empty name subscribes to
// every change.
func (e *changeEmitter) On(event string, handler ChangeHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]ChangeHandler)
	}
	e.listeners[event] = append(e.listeners[event], handler)
}

func (e *changeEmitter) emit(event string, payload any) {
	e.mu.RLock()
	handlers := append([]ChangeHandler{}, e.listeners[event]...)
	handlers = append(handlers, e.listeners[""]...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() { recover() }() // swallow panics in subscriber callbacks
			h(event, payload)
		}()
	}
}

func (e *changeEmitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = make(map[string][]ChangeHandler)
}
