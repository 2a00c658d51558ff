package crewdesk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessage(id, conv, content string) Message {
	return Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       "user-7",
		Content:        content,
		CreatedAt:      time.Now(),
	}
}

func TestApplyNewMessageIdempotent(t *testing.T) {
	s := NewStore()
	msg := testMessage("m1", "conv-a", "hello")

	s.ApplyNewMessage(msg)
	s.ApplyNewMessage(msg) // duplicate delivery

	msgs := s.Messages("conv-a")
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, 1, s.UnreadCount("conv-a"))
}

func TestApplyNewMessageUpdatesConversation(t *testing.T) {
	s := NewStore()
	s.ReplaceConversations([]Conversation{{ID: "conv-a", Type: ConversationDirect}})

	first := testMessage("m1", "conv-a", "first")
	second := testMessage("m2", "conv-a", "second")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	s.ApplyNewMessage(first)
	s.ApplyNewMessage(second)

	conv, ok := s.Conversation("conv-a")
	require.True(t, ok)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "m2", conv.LastMessage.ID)
	assert.Equal(t, 2, conv.UnreadCount)
	assert.Equal(t, second.CreatedAt, conv.UpdatedAt)
}

func TestApplyNewMessageDuplicateKeepsLastMessage(t *testing.T) {
	s := NewStore()
	first := testMessage("m1", "conv-a", "first")
	second := testMessage("m2", "conv-a", "second")
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	s.ApplyNewMessage(first)
	s.ApplyNewMessage(second)
	s.ApplyNewMessage(first) // redelivered duplicate of the older message

	conv, ok := s.Conversation("conv-a")
	require.True(t, ok)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "m2", conv.LastMessage.ID, "duplicate of an older message must not regress lastMessage")
	assert.Equal(t, second.CreatedAt, conv.UpdatedAt)
	assert.Equal(t, 2, conv.UnreadCount)
	assert.Len(t, s.Messages("conv-a"), 2)
}

func TestApplyNewMessageOutOfOrder(t *testing.T) {
	s := NewStore()
	older := testMessage("m1", "conv-a", "late arrival")
	newer := testMessage("m2", "conv-a", "current")
	newer.CreatedAt = older.CreatedAt.Add(time.Second)

	s.ApplyNewMessage(newer)
	s.ApplyNewMessage(older) // fresh insert, but created earlier

	conv, _ := s.Conversation("conv-a")
	assert.Equal(t, "m2", conv.LastMessage.ID)
	assert.Equal(t, 2, s.UnreadCount("conv-a"), "late arrival still counts as unread")
}

func TestApplyNewMessageActiveConversation(t *testing.T) {
	s := NewStore()
	s.SetActiveConversation("conv-a")

	s.ApplyNewMessage(testMessage("m1", "conv-a", "viewing it"))
	s.ApplyNewMessage(testMessage("m2", "conv-b", "not viewing"))

	assert.Equal(t, 0, s.UnreadCount("conv-a"), "active conversation stays read")
	assert.Equal(t, 1, s.UnreadCount("conv-b"))
}

func TestApplyNewMessageCreatesStubConversation(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-x", "early"))

	conv, ok := s.Conversation("conv-x")
	require.True(t, ok)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestMarkReadResetsUnread(t *testing.T) {
	s := NewStore()
	for _, id := range []string{"m1", "m2", "m3"} {
		s.ApplyNewMessage(testMessage(id, "conv-a", "msg "+id))
	}
	require.Equal(t, 3, s.UnreadCount("conv-a"))

	s.MarkRead("conv-a")
	assert.Equal(t, 0, s.UnreadCount("conv-a"))
	for _, m := range s.Messages("conv-a") {
		assert.True(t, m.Read)
	}

	// Idempotent; unread can never go negative.
	s.MarkRead("conv-a")
	assert.Equal(t, 0, s.UnreadCount("conv-a"))
}

func TestMarkMessageRead(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-a", "one"))
	s.ApplyNewMessage(testMessage("m2", "conv-a", "two"))

	s.MarkMessageRead("m1", "conv-a")

	msgs := s.Messages("conv-a")
	assert.True(t, msgs[0].Read)
	assert.False(t, msgs[1].Read)
	// Per-message reads do not touch the conversation counter.
	assert.Equal(t, 2, s.UnreadCount("conv-a"))
}

func TestMarkMessageReadBeforeArrival(t *testing.T) {
	s := NewStore()
	// The read event may outrun the message itself; that is a no-op.
	s.MarkMessageRead("m-future", "conv-a")
	assert.Empty(t, s.Messages("conv-a"))

	s.ApplyNewMessage(testMessage("m-future", "conv-a", "late"))
	assert.False(t, s.Messages("conv-a")[0].Read)
}

func TestUpsertMessageReplacesInPlace(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-a", "one"))
	s.ApplyNewMessage(testMessage("m2", "conv-a", "tpyo"))

	edited := testMessage("m2", "conv-a", "typo fixed")
	edited.Edited = true
	now := time.Now()
	edited.EditedAt = &now
	s.UpsertMessage(edited)

	msgs := s.Messages("conv-a")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[1].ID, "edit keeps list position")
	assert.Equal(t, "typo fixed", msgs[1].Content)
	assert.True(t, msgs[1].Edited)

	conv, _ := s.Conversation("conv-a")
	assert.Equal(t, "typo fixed", conv.LastMessage.Content, "lastMessage reflects the edit")
}

func TestRemoveMessage(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-a", "one"))
	s.ApplyNewMessage(testMessage("m2", "conv-a", "two"))

	s.RemoveMessage("m2", "conv-a")
	msgs := s.Messages("conv-a")
	require.Len(t, msgs, 1)

	conv, _ := s.Conversation("conv-a")
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, "m1", conv.LastMessage.ID, "lastMessage falls back to the remaining tail")

	// Idempotent removal.
	s.RemoveMessage("m2", "conv-a")
	assert.Len(t, s.Messages("conv-a"), 1)
	s.RemoveMessage("missing", "conv-a")
	assert.Len(t, s.Messages("conv-a"), 1)
}

func TestReplaceConversationsKeepsMessages(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-a", "kept"))

	s.ReplaceConversations([]Conversation{
		{ID: "conv-a", Type: ConversationGroup, Title: "ops", UnreadCount: 4, UpdatedAt: time.Now()},
		{ID: "conv-b", Type: ConversationDirect, UpdatedAt: time.Now().Add(-time.Hour)},
	})

	assert.Len(t, s.Messages("conv-a"), 1)
	assert.Equal(t, 4, s.UnreadCount("conv-a"), "incoming counts are authoritative")

	convs := s.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "conv-a", convs[0].ID, "sorted most recently updated first")
}

func TestSeedMessagesMergesAndSorts(t *testing.T) {
	s := NewStore()
	live := testMessage("m3", "conv-a", "live")
	live.CreatedAt = time.Now()
	s.ApplyNewMessage(live)

	page := []Message{
		{ID: "m2", Content: "older", CreatedAt: live.CreatedAt.Add(-time.Minute)},
		{ID: "m1", Content: "oldest", CreatedAt: live.CreatedAt.Add(-2 * time.Minute)},
		{ID: "m3", Content: "live", CreatedAt: live.CreatedAt},
	}
	s.SeedMessages("conv-a", page)

	msgs := s.Messages("conv-a")
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Equal(t, 1, s.UnreadCount("conv-a"), "seeding does not touch unread")
}

func TestTotalUnread(t *testing.T) {
	s := NewStore()
	s.ApplyNewMessage(testMessage("m1", "conv-a", "a"))
	s.ApplyNewMessage(testMessage("m2", "conv-b", "b"))
	s.ApplyNewMessage(testMessage("m3", "conv-b", "b2"))
	assert.Equal(t, 3, s.TotalUnread())

	s.MarkRead("conv-b")
	assert.Equal(t, 1, s.TotalUnread())
}

func TestStoreChangeNotifications(t *testing.T) {
	s := NewStore()

	var events []string
	s.On("", func(event string, payload any) {
		events = append(events, event)
	})

	s.ApplyNewMessage(testMessage("m1", "conv-a", "hi"))
	assert.Contains(t, events, ChangeMessages)
	assert.Contains(t, events, ChangeUnread)

	events = nil
	s.ApplyNewMessage(testMessage("m1", "conv-a", "hi"))
	assert.NotContains(t, events, ChangeUnread, "duplicate delivery emits no unread change")
}
