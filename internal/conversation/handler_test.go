package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

type failingChatService struct{ err error }

func (s failingChatService) Chat(context.Context, ChatRequest) (*ChatResponse, error) {
	return nil, s.err
}

func TestHandlerChat(t *testing.T) {
	svc := NewService(ServiceOptions{
		Replies:   NewReplyGenerator(&stubLLM{text: "Hello Jamie!"}, "stub", 0, nil, nil),
		DebugInfo: true,
	})
	h := NewHandler(svc, logging.Default())

	body := `{"user_id": 42, "session_id": "s1", "message": {"text": "Hello!", "timestamp": "2024-03-01T12:00:00Z"},
		"user_profile": {"school_info": {"school_id": 7, "school_name": "Lincoln High"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carton_caps/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "Hello Jamie!", resp.Reply.Text)
	require.Len(t, resp.UpdatedConversationHistory, 2)
	assert.Equal(t, "Hello!", resp.UpdatedConversationHistory[0].Content)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp.UpdatedConversationHistory[0].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
	require.NotNil(t, resp.DebugInfo)
	assert.Contains(t, resp.DebugInfo.LLMPrompt, "user '42' who supports 'Lincoln High'")
	assert.Len(t, resp.SuggestedActions, 2)
}

func TestHandlerChatBadRequests(t *testing.T) {
	h := NewHandler(NewService(ServiceOptions{}), nil)

	for name, body := range map[string]string{
		"malformed json":  `{"user_id": "u1"`,
		"missing session": `{"user_id": "u1", "message": {"text": "hi"}}`,
		"blank text":      `{"user_id": "u1", "session_id": "s1", "message": {"text": " "}}`,
		"bad user id":     `{"user_id": true, "session_id": "s1", "message": {"text": "hi"}}`,
		"bad role":        `{"user_id": "u1", "session_id": "s1", "message": {"text": "hi"}, "conversation_history": [{"role": "bot", "content": "x"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Chat(rec, httptest.NewRequest(http.MethodPost, "/api/v1/carton_caps/chat", strings.NewReader(body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestHandlerChatUnexpectedError(t *testing.T) {
	h := NewHandler(failingChatService{err: errors.New("boom")}, nil)
	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandlerHealth(t *testing.T) {
	h := NewHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestFlexibleIDUnmarshal(t *testing.T) {
	var v struct {
		A FlexibleID `json:"a"`
		B FlexibleID `json:"b"`
		C FlexibleID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "u1", "b": 12345, "c": null}`), &v))
	assert.Equal(t, FlexibleID("u1"), v.A)
	assert.Equal(t, FlexibleID("12345"), v.B)
	assert.Equal(t, FlexibleID(""), v.C)

	require.Error(t, json.Unmarshal([]byte(`{"a": [1]}`), &v))
}
