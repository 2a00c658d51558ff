package crewdesk

import (
	"sort"
	"sync"
)

// ============================================================================
// Conversation/Message Store
// ============================================================================

// Store holds the canonical local view of conversations and messages. Every
// mutation is an idempotent merge: redelivered or out-of-order events settle
// to the same state as a single in-order application. The dispatcher is the
// only writer; UI layers read through the accessor methods and subscribe to
// change notifications via On.
type Store struct {
	changeEmitter

	mu            sync.RWMutex
	conversations map[string]*Conversation
	messages      map[string][]Message
	active        string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]Message),
	}
}

// SetActiveConversation records which conversation the user is currently
// viewing. New messages for the active conversation do not increment its
// unread count.
func (s *Store) SetActiveConversation(conversationID string) {
	s.mu.Lock()
	s.active = conversationID
	s.mu.Unlock()
}

// ActiveConversation returns the currently viewed conversation id, or "".
func (s *Store) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// UpsertMessage appends the message to its conversation's list, or replaces
// the existing entry with the same id in place. It never duplicates an id,
// which makes redelivery of the same event a no-op after the first
// application. Edits arrive through this path as full replacements.
func (s *Store) UpsertMessage(msg Message) {
	s.mu.Lock()
	s.upsertLocked(msg)
	s.mu.Unlock()
	s.emit(ChangeMessages, msg.ConversationID)
}

// upsertLocked reports whether the message was newly inserted.
func (s *Store) upsertLocked(msg Message) bool {
	list := s.messages[msg.ConversationID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg
			if conv, ok := s.conversations[msg.ConversationID]; ok {
				if conv.LastMessage != nil && conv.LastMessage.ID == msg.ID {
					m := msg
					conv.LastMessage = &m
				}
			}
			return false
		}
	}
	s.messages[msg.ConversationID] = append(list, msg)
	return true
}

// ApplyNewMessage merges a freshly delivered message: upsert, bump the parent
// conversation's last message, and increment its unread count unless the
// conversation is the one currently open. Duplicate deliveries increment
// unread only once.
func (s *Store) ApplyNewMessage(msg Message) {
	s.mu.Lock()
	inserted := s.upsertLocked(msg)
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		// Event may outrun the conversation seed; a stub keeps the message
		// reachable until the next REST reconcile fills in the details.
		conv = &Conversation{ID: msg.ConversationID, Type: ConversationDirect}
		s.conversations[msg.ConversationID] = conv
	}
	// A redelivered older message must not regress lastMessage.
	if conv.LastMessage == nil || !msg.CreatedAt.Before(conv.LastMessage.CreatedAt) {
		m := msg
		conv.LastMessage = &m
	}
	if msg.CreatedAt.After(conv.UpdatedAt) {
		conv.UpdatedAt = msg.CreatedAt
	}
	if inserted && msg.ConversationID != s.active {
		conv.UnreadCount++
	}
	s.mu.Unlock()

	s.emit(ChangeMessages, msg.ConversationID)
	if inserted {
		s.emit(ChangeUnread, msg.ConversationID)
	}
}

// MarkRead marks every message in the conversation as read and resets its
// unread count to zero. Idempotent.
func (s *Store) MarkRead(conversationID string) {
	s.mu.Lock()
	list := s.messages[conversationID]
	for i := range list {
		list[i].Read = true
	}
	if conv, ok := s.conversations[conversationID]; ok {
		conv.UnreadCount = 0
		if conv.LastMessage != nil {
			conv.LastMessage.Read = true
		}
	}
	s.mu.Unlock()
	s.emit(ChangeUnread, conversationID)
}

// MarkMessageRead marks exactly one message as read. A read event may arrive
// before the message itself; that is a no-op, not an error — the next full
// history fetch reconciles.
func (s *Store) MarkMessageRead(messageID, conversationID string) {
	s.mu.Lock()
	list := s.messages[conversationID]
	changed := false
	for i := range list {
		if list[i].ID == messageID {
			changed = !list[i].Read
			list[i].Read = true
			break
		}
	}
	if conv, ok := s.conversations[conversationID]; ok {
		if conv.LastMessage != nil && conv.LastMessage.ID == messageID {
			conv.LastMessage.Read = true
		}
	}
	s.mu.Unlock()
	if changed {
		s.emit(ChangeMessages, conversationID)
	}
}

// RemoveMessage removes a message from its conversation. No-op if absent.
func (s *Store) RemoveMessage(messageID, conversationID string) {
	s.mu.Lock()
	list := s.messages[conversationID]
	removed := false
	for i := range list {
		if list[i].ID == messageID {
			s.messages[conversationID] = append(list[:i], list[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		if conv, ok := s.conversations[conversationID]; ok {
			if conv.LastMessage != nil && conv.LastMessage.ID == messageID {
				conv.LastMessage = nil
				if rest := s.messages[conversationID]; len(rest) > 0 {
					m := rest[len(rest)-1]
					conv.LastMessage = &m
				}
			}
		}
	}
	s.mu.Unlock()
	if removed {
		s.emit(ChangeMessages, conversationID)
	}
}

// ReplaceConversations wholesale-replaces the conversation list. Used when
// seeding from the REST collaborator and when reconciling after a reconnect.
// Message lists are kept; the incoming unread counts are authoritative.
func (s *Store) ReplaceConversations(convs []Conversation) {
	s.mu.Lock()
	s.conversations = make(map[string]*Conversation, len(convs))
	for i := range convs {
		c := convs[i]
		s.conversations[c.ID] = &c
	}
	s.mu.Unlock()
	s.emit(ChangeConversations, nil)
}

// SeedMessages merges a fetched history page into the conversation's list
// without touching unread counters.
func (s *Store) SeedMessages(conversationID string, msgs []Message) {
	s.mu.Lock()
	for _, m := range msgs {
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		s.upsertLocked(m)
	}
	list := s.messages[conversationID]
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	s.mu.Unlock()
	s.emit(ChangeMessages, conversationID)
}

// ============================================================================
// Accessors
// ============================================================================

// Conversations returns a copy of all conversations, most recently updated
// first.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	result := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		result = append(result, *c)
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	return result
}

// Conversation returns one conversation by id.
func (s *Store) Conversation(conversationID string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// Messages returns a copy of the conversation's message list in arrival
// order.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.messages[conversationID]...)
}

// UnreadCount returns the unread counter for one conversation.
func (s *Store) UnreadCount(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.conversations[conversationID]; ok {
		return c.UnreadCount
	}
	return 0
}

// TotalUnread sums unread counters across all conversations.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}
