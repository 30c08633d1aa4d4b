package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
)

func newAdminRouter(h *AdminHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/admin/users/{userID}", h.GetUser)
	r.Get("/admin/users/{userID}/conversations", h.GetConversations)
	r.Get("/admin/sessions/{sessionID}", h.GetSession)
	return r
}

func TestAdminGetUser(t *testing.T) {
	repo := newSQLiteRepository(t)
	router := newAdminRouter(NewAdminHandler(repo, repo, NewMemorySessionStore(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		User            datastore.UserDetails      `json:"user"`
		RecentPurchases []datastore.PurchaseRecord `json:"recent_purchases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Jamie", payload.User.UserName)
	assert.Equal(t, "Maple Elementary", payload.User.SchoolName())
	assert.NotNil(t, payload.RecentPurchases)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminGetUserUnavailable(t *testing.T) {
	repo := datastore.NewRepository(nil, nil)
	router := newAdminRouter(NewAdminHandler(repo, repo, NewMemorySessionStore(), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminGetConversations(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := repo.SaveMessage(ctx, "s1", "u1", datastore.SenderUser, "hi", ts)
	require.NoError(t, err)
	_, err = repo.SaveMessage(ctx, "s1", "u1", datastore.SenderBot, "hello!", ts.Add(time.Second))
	require.NoError(t, err)

	router := newAdminRouter(NewAdminHandler(repo, repo, NewMemorySessionStore(), nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/u1/conversations?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload struct {
		Messages []AdminConversationEntry `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Messages, 2)
	assert.Equal(t, ChatRoleUser, payload.Messages[0].Role)
	assert.Equal(t, ChatRoleAssistant, payload.Messages[1].Role)
	assert.Equal(t, datastore.SenderBot, payload.Messages[1].Sender)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/u1/conversations?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminGetSession(t *testing.T) {
	sessions := NewMemorySessionStore()
	require.NoError(t, sessions.Append(context.Background(), "s1", Message{ID: "m1", Role: ChatRoleUser, Content: "hi"}))

	router := newAdminRouter(NewAdminHandler(nil, nil, sessions, nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/sessions/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		SessionID string    `json:"session_id"`
		Messages  []Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "s1", payload.SessionID)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "hi", payload.Messages[0].Content)
}
