package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsMaxMessageSize = maxChatBodyBytes
)

// WSHandler serves chat over a WebSocket. Each text frame is a ChatRequest;
// each reply frame is a ChatResponse or {"error": "..."}. Turns on one
// connection are processed in order.
type WSHandler struct {
	service  ChatService
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewWSHandler allows same-origin upgrades, plus allowedOrigins when set
// ("*" allows all).
func NewWSHandler(service ChatService, allowedOrigins []string, logger *logging.Logger) *WSHandler {
	if logger == nil {
		logger = logging.Default()
	}
	h := &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessageSize)

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var payload any
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			payload = map[string]string{"error": "invalid request body"}
		} else if resp, err := h.service.Chat(ctx, req); err != nil {
			if errors.Is(err, ErrInvalidRequest) {
				payload = map[string]string{"error": err.Error()}
			} else {
				h.logger.Error("failed to process websocket chat turn", "session_id", req.SessionID, "error", err)
				payload = map[string]string{"error": "failed to process message"}
			}
		} else {
			payload = resp
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(payload); err != nil {
			h.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		// Same-origin is always allowed.
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
