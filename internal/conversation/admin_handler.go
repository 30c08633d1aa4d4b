package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	adminPurchaseLimit     = 5
	adminConversationLimit = 20
	maxAdminConversation   = 200
)

// UserRecords reads user profile data for operators.
type UserRecords interface {
	UserDetails(ctx context.Context, userID string) (datastore.UserDetails, error)
	PurchaseHistory(ctx context.Context, userID string, limit int) ([]datastore.PurchaseRecord, error)
}

// ConversationReader reads back persisted turns.
type ConversationReader interface {
	ConversationHistory(ctx context.Context, userID string, limit int) ([]datastore.ConversationLogEntry, error)
}

// AdminHandler serves read-only operator views over users, the conversation
// log and live sessions.
type AdminHandler struct {
	users    UserRecords
	log      ConversationReader
	sessions SessionStore
	logger   *logging.Logger
}

func NewAdminHandler(users UserRecords, log ConversationReader, sessions SessionStore, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{users: users, log: log, sessions: sessions, logger: logger}
}

type adminUserResponse struct {
	User            datastore.UserDetails      `json:"user"`
	RecentPurchases []datastore.PurchaseRecord `json:"recent_purchases"`
}

// AdminConversationEntry is a persisted turn with the session role restored.
type AdminConversationEntry struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	Role         string    `json:"role"`
	Sender       string    `json:"sender"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp,omitempty"`
}

// GetUser handles GET /admin/users/{userID}.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	details, err := h.users.UserDetails(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, "user", err)
		return
	}
	purchases, err := h.users.PurchaseHistory(r.Context(), userID, adminPurchaseLimit)
	if err != nil {
		h.logger.Warn("failed to load purchase history", "user_id", userID, "error", err)
	}
	if purchases == nil {
		purchases = []datastore.PurchaseRecord{}
	}
	writeAdminJSON(w, http.StatusOK, adminUserResponse{User: details, RecentPurchases: purchases})
}

// GetConversations handles GET /admin/users/{userID}/conversations?limit=N.
func (h *AdminHandler) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	limit := adminConversationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAdminConversation)
	}

	entries, err := h.log.ConversationHistory(r.Context(), userID, limit)
	if err != nil {
		h.writeStoreError(w, "conversation history", err)
		return
	}
	out := make([]AdminConversationEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, AdminConversationEntry{
			ID:           e.ID,
			SessionID:    e.SessionID,
			Role:         sessionRole(e.Sender),
			Sender:       e.Sender,
			Content:      e.Message,
			Timestamp:    e.Timestamp,
			RawTimestamp: e.RawTimestamp,
		})
	}
	writeAdminJSON(w, http.StatusOK, map[string]any{"user_id": userID, "messages": out})
}

// GetSession handles GET /admin/sessions/{sessionID}.
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	history, err := h.sessions.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	writeAdminJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": history})
}

func (h *AdminHandler) writeStoreError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, datastore.ErrNotFound):
		writeError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, datastore.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "datastore unavailable")
	default:
		h.logger.Error("admin lookup failed", "what", what, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load "+what)
	}
}

// sessionRole maps the persisted sender back to the session vocabulary.
func sessionRole(sender string) string {
	if sender == datastore.SenderBot {
		return ChatRoleAssistant
	}
	return sender
}

func writeAdminJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
