package crewdesk

import (
	"sort"
	"sync"
	"time"
)

// ============================================================================
// Presence & Typing Tracker
// ============================================================================

// Typing entries are evicted this long after their last refresh. The TTL
// guards against a lost typing:stop event.
const TypingTTL = 2 * time.Second

// DefaultSweepInterval is how often the dispatcher runs the eviction sweep.
const DefaultSweepInterval = 500 * time.Millisecond

type typingKey struct {
	userID         string
	conversationID string
}

// PresenceTracker owns the ephemeral state: who is online and who is typing.
// Typing entries carry a TTL and are evicted by a periodic sweep; presence is
// last-write-wins with no TTL, since only the server decides "offline". The
// two merge strategies are deliberately distinct from the store's idempotent
// message merge.
type PresenceTracker struct {
	changeEmitter

	mu     sync.RWMutex
	typing map[typingKey]TypingIndicator
	online map[string]OnlineUser
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		typing: make(map[typingKey]TypingIndicator),
		online: make(map[string]OnlineUser),
	}
}

// SetTyping inserts or refreshes the typing entry for (user, conversation),
// restarting its TTL.
func (p *PresenceTracker) SetTyping(userID, userName, conversationID string) {
	p.mu.Lock()
	p.typing[typingKey{userID, conversationID}] = TypingIndicator{
		UserID:         userID,
		UserName:       userName,
		ConversationID: conversationID,
		Timestamp:      time.Now(),
	}
	p.mu.Unlock()
	p.emit(ChangeTyping, conversationID)
}

// ClearTyping removes the typing entry on an explicit typing:stop.
func (p *PresenceTracker) ClearTyping(userID, conversationID string) {
	key := typingKey{userID, conversationID}
	p.mu.Lock()
	_, existed := p.typing[key]
	delete(p.typing, key)
	p.mu.Unlock()
	if existed {
		p.emit(ChangeTyping, conversationID)
	}
}

// Sweep evicts typing entries whose last refresh is older than the TTL as of
// now. It returns the number of evicted entries.
func (p *PresenceTracker) Sweep(now time.Time) int {
	var stale []string
	p.mu.Lock()
	for key, ind := range p.typing {
		if now.Sub(ind.Timestamp) > TypingTTL {
			delete(p.typing, key)
			stale = append(stale, key.conversationID)
		}
	}
	p.mu.Unlock()
	for _, conv := range stale {
		p.emit(ChangeTyping, conv)
	}
	return len(stale)
}

// TypingIn returns who is typing in the conversation, oldest refresh first.
func (p *PresenceTracker) TypingIn(conversationID string) []TypingIndicator {
	p.mu.RLock()
	var result []TypingIndicator
	for key, ind := range p.typing {
		if key.conversationID == conversationID {
			result = append(result, ind)
		}
	}
	p.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result
}

// SetOnline applies a single presence event, last write wins.
func (p *PresenceTracker) SetOnline(userID string, online bool) {
	p.mu.Lock()
	u := p.online[userID]
	u.UserID = userID
	u.IsOnline = online
	if !online {
		u.LastSeen = time.Now()
	}
	p.online[userID] = u
	p.mu.Unlock()
	p.emit(ChangePresence, userID)
}

// ReplaceSnapshot wholesale-replaces the known presence set from a server
// snapshot, correcting any drift accumulated while disconnected.
func (p *PresenceTracker) ReplaceSnapshot(users []OnlineUser) {
	p.mu.Lock()
	p.online = make(map[string]OnlineUser, len(users))
	for _, u := range users {
		p.online[u.UserID] = u
	}
	p.mu.Unlock()
	p.emit(ChangePresence, nil)
}

// IsOnline reports the latest known presence of a user.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID].IsOnline
}

// Online returns every user currently known to be online.
func (p *PresenceTracker) Online() []OnlineUser {
	p.mu.RLock()
	var result []OnlineUser
	for _, u := range p.online {
		if u.IsOnline {
			result = append(result, u)
		}
	}
	p.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result
}
