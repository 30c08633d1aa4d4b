package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const maxChatBodyBytes = 1 << 20

// Handler wires HTTP requests to the chat service.
type Handler struct {
	service ChatService
	logger  *logging.Logger
}

// NewHandler creates a chat handler.
func NewHandler(service ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Chat handles POST /api/v1/carton_caps/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.service.Chat(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to process chat turn", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health. It does not depend on the database or model.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
