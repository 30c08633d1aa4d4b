package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/cartoncaps-assistant/internal/observability/metrics"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

// ErrLLMDisabled is reported when no model credential is configured.
var ErrLLMDisabled = errors.New("conversation: llm disabled")

const (
	PlaceholderReply  = "[LLM Disabled] This is a placeholder response as the LLM is not configured."
	EmptyReply        = "Sorry, I couldn't generate a response at this moment."
	ErrorReplyPrefix  = "Sorry, I encountered an error trying to understand that. Error: "
	ConnectivityReply = "I'm having a little trouble connecting right now. Please try again in a moment."

	maxErrorReplyRunes = 100
)

// ReplyGenerator turns a prompt into user-facing reply text. It never returns
// an error: disabled, empty, and failed calls become fixed strings.
type ReplyGenerator struct {
	client      LLMClient
	provider    string
	timeout     time.Duration
	temperature float32
	maxTokens   int32
	logger      *logging.Logger
	metrics     *metrics.ChatMetrics
}

// NewReplyGenerator wraps client. A nil client means generation is disabled.
func NewReplyGenerator(client LLMClient, provider string, timeout time.Duration, logger *logging.Logger, m *metrics.ChatMetrics) *ReplyGenerator {
	if logger == nil {
		logger = logging.Default()
	}
	if provider == "" {
		provider = "unknown"
	}
	return &ReplyGenerator{
		client:      client,
		provider:    provider,
		timeout:     timeout,
		temperature: -1,
		logger:      logger,
		metrics:     m,
	}
}

// WithSampling sets the temperature and output token cap sent with every call.
// A negative temperature or a non-positive maxTokens keeps the provider default.
func (g *ReplyGenerator) WithSampling(temperature float32, maxTokens int32) *ReplyGenerator {
	if temperature < 0 {
		temperature = -1
	}
	if maxTokens < 0 {
		maxTokens = 0
	}
	g.temperature = temperature
	g.maxTokens = maxTokens
	return g
}

// Enabled reports whether a model client is configured.
func (g *ReplyGenerator) Enabled() bool {
	return g != nil && g.client != nil
}

// Generate sends prompt to the model and returns the reply text.
func (g *ReplyGenerator) Generate(ctx context.Context, prompt string) string {
	text, err := g.complete(ctx, prompt)
	switch {
	case errors.Is(err, ErrLLMDisabled):
		return PlaceholderReply
	case err != nil:
		return ErrorReplyPrefix + truncateRunes(rootCause(err).Error(), maxErrorReplyRunes)
	case text == "":
		return EmptyReply
	}
	return text
}

func (g *ReplyGenerator) complete(ctx context.Context, prompt string) (string, error) {
	if !g.Enabled() {
		g.logger.Debug("llm not configured, skipping model call")
		g.metrics.ObserveLLM(g.provider, "disabled", 0)
		return "", ErrLLMDisabled
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	g.logger.Debug("sending prompt to llm", "provider", g.provider, "prompt", prompt)
	start := time.Now()
	resp, err := g.client.Complete(ctx, LLMRequest{
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		g.logger.Warn("llm call failed", "provider", g.provider, "error", err)
		g.metrics.ObserveLLM(g.provider, "error", elapsed)
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		g.metrics.ObserveLLM(g.provider, "empty", elapsed)
		return "", nil
	}
	g.metrics.ObserveLLM(g.provider, "ok", elapsed)
	return text, nil
}

// rootCause follows single-error wrapping down to the innermost error.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
