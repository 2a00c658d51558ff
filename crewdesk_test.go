package crewdesk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiStub(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, ok := routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"ok":false,"error":{"code":"NOT_FOUND","message":"no such route"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestConversationsList(t *testing.T) {
	srv := apiStub(t, map[string]string{
		"GET /api/chat/conversations": `{"ok":true,"data":[
			{"id":"c1","type":"group","title":"ops","unreadCount":2},
			{"id":"c2","type":"direct"}
		]}`,
	})
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	convs, err := client.Conversations.List(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, ConversationGroup, convs[0].Type)
	assert.Equal(t, 2, convs[0].UnreadCount)
}

func TestAPIErrorEnvelope(t *testing.T) {
	srv := apiStub(t, map[string]string{
		"GET /api/chat/conversations/c9": `{"ok":false,"error":{"code":"FORBIDDEN","message":"not a participant"}}`,
	})
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	_, err := client.Conversations.Get(context.Background(), "c9")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Equal(t, "not a participant", apiErr.Message)
}

func TestMessageHistoryQuery(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"data":[{"id":"m1","conversationId":"c1","content":"hi"}]}`))
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	before := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	msgs, err := client.Messages.History(context.Background(), "c1", &PageOptions{Limit: 20, Before: before})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"20"}, gotQuery["limit"])
	assert.Equal(t, []string{"2026-08-30T12:00:00Z"}, gotQuery["before"])
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient("tok-123", WithBaseURL(srv.URL))
	_, err := client.Conversations.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestPresenceOnline(t *testing.T) {
	srv := apiStub(t, map[string]string{
		"GET /api/chat/presence/online": `{"ok":true,"data":[
			{"userId":"u1","isOnline":true},
			{"userId":"u2","isOnline":false,"lastSeen":"2026-08-30T09:00:00Z"}
		]}`,
	})
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	users, err := client.Presence.Online(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].IsOnline)
	assert.False(t, users[1].LastSeen.IsZero())
}

func TestWSURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.crewdesk.io", "wss://api.crewdesk.io/ws"},
		{"http://localhost:8080", "ws://localhost:8080/ws"},
	}
	for _, tc := range cases {
		client := NewClient("tok", WithBaseURL(tc.base))
		if got := client.WSURL(); got != tc.want {
			t.Errorf("WSURL(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestResync(t *testing.T) {
	srv := apiStub(t, map[string]string{
		"GET /api/chat/conversations": `{"ok":true,"data":[
			{"id":"c1","type":"direct","unreadCount":3},
			{"id":"c2","type":"group","title":"ops"}
		]}`,
		"GET /api/chat/messages/c1": `{"ok":true,"data":[
			{"id":"m1","conversationId":"c1","content":"old","createdAt":"2026-08-30T10:00:00Z"},
			{"id":"m2","conversationId":"c1","content":"older still","createdAt":"2026-08-30T09:00:00Z"}
		]}`,
	})
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	rt := NewRealtime("ws://127.0.0.1:1/ws", nil)
	defer rt.Close()
	rt.Store().SetActiveConversation("c1")

	require.NoError(t, client.Resync(context.Background(), rt))

	assert.Equal(t, 3, rt.Store().UnreadCount("c1"))
	msgs := rt.Store().Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m2", msgs[0].ID, "history is merged oldest first")
}
