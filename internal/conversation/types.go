package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRequest marks a chat request that fails validation.
var ErrInvalidRequest = errors.New("conversation: invalid request")

// Suggested action types understood by the client.
const (
	ActionQuickReply   = "quick_reply"
	ActionProductLink  = "product_link"
	ActionReferralLink = "referral_link"
	ActionExternalURL  = "external_url"
)

// Message is one turn held in a session. Role is user or assistant.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FlexibleID accepts either a JSON string or a JSON number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

type MessageInput struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type SchoolInfo struct {
	SchoolID   FlexibleID `json:"school_id,omitempty"`
	SchoolName string     `json:"school_name,omitempty"`
}

type UserProfile struct {
	Preferences          []string          `json:"preferences,omitempty"`
	PastPurchasesSummary []string          `json:"past_purchases_summary,omitempty"`
	LocationContext      map[string]string `json:"location_context,omitempty"`
	SchoolInfo           *SchoolInfo       `json:"school_info,omitempty"`
}

type ClientContext struct {
	CurrentView string `json:"current_view,omitempty"`
}

type ChatRequest struct {
	UserID              FlexibleID     `json:"user_id"`
	SessionID           string         `json:"session_id"`
	Message             MessageInput   `json:"message"`
	ConversationHistory []Message      `json:"conversation_history,omitempty"`
	UserProfile         *UserProfile   `json:"user_profile,omitempty"`
	ClientContext       *ClientContext `json:"client_context,omitempty"`
}

// Normalize validates the request and fills defaults: missing timestamps
// become now and client history messages get ids.
func (r *ChatRequest) Normalize(now time.Time) error {
	r.UserID = FlexibleID(strings.TrimSpace(string(r.UserID)))
	r.SessionID = strings.TrimSpace(r.SessionID)
	switch {
	case r.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	case r.SessionID == "":
		return fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	case strings.TrimSpace(r.Message.Text) == "":
		return fmt.Errorf("%w: message.text is required", ErrInvalidRequest)
	}
	if r.Message.Timestamp.IsZero() {
		r.Message.Timestamp = now
	}
	for i := range r.ConversationHistory {
		msg := &r.ConversationHistory[i]
		if msg.Role != ChatRoleUser && msg.Role != ChatRoleAssistant {
			return fmt.Errorf("%w: conversation_history[%d].role must be user or assistant", ErrInvalidRequest, i)
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
	}
	return nil
}

// ProfileSchoolName is the school name the client supplied, if any.
func (r *ChatRequest) ProfileSchoolName() string {
	if r.UserProfile == nil || r.UserProfile.SchoolInfo == nil {
		return ""
	}
	return strings.TrimSpace(r.UserProfile.SchoolInfo.SchoolName)
}

type Reply struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// SuggestedAction payload is either a string or a JSON object.
type SuggestedAction struct {
	Type      string `json:"type"`
	TextLabel string `json:"text_label"`
	Payload   any    `json:"payload"`
}

type DebugInfo struct {
	IntentDetected          string   `json:"intent_detected,omitempty"`
	RetrievedContextSummary string   `json:"retrieved_context_summary,omitempty"`
	DataSourcesUsed         []string `json:"data_sources_used,omitempty"`
	LLMPrompt               string   `json:"llm_prompt,omitempty"`
}

type ChatResponse struct {
	SessionID                  string            `json:"session_id"`
	Reply                      Reply             `json:"reply"`
	UpdatedConversationHistory []Message         `json:"updated_conversation_history"`
	SuggestedActions           []SuggestedAction `json:"suggested_actions,omitempty"`
	DebugInfo                  *DebugInfo        `json:"debug_info,omitempty"`
}
