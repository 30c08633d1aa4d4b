package conversation

import "context"

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is a provider-neutral chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest describes one completion call. An empty Model selects the
// client's configured model. A negative Temperature and a zero MaxTokens leave
// the provider defaults.
type LLMRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

// LLMResponse carries the model text as returned; callers own trimming.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
