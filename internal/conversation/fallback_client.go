package conversation

import (
	"context"

	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

// FallbackLLMClient sends each completion to the configured provider first and,
// when that call fails, makes one more attempt on OpenAI. The OpenAI attempt is
// skipped once ctx is done, since it would fail the same deadline.
type FallbackLLMClient struct {
	provider string
	primary  LLMClient
	openAI   LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient pairs the provider named by provider with an OpenAI
// client. A nil openAI leaves primary errors unchanged.
func NewFallbackLLMClient(provider string, primary, openAI LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		provider: provider,
		primary:  primary,
		openAI:   openAI,
		logger:   logger,
	}
}

// Complete returns the configured provider's answer or, on failure, the OpenAI
// answer. The OpenAI call always uses its own configured model.
func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if c.openAI == nil || ctx.Err() != nil {
		c.logger.Warn("llm provider failed; no openai retry",
			"provider", c.provider,
			"error", err,
			"context_done", ctx.Err() != nil,
		)
		return LLMResponse{}, err
	}

	c.logger.Warn("llm provider failed; retrying on openai", "provider", c.provider, "error", err)
	req.Model = ""
	resp, openAIErr := c.openAI.Complete(ctx, req)
	if openAIErr != nil {
		c.logger.Error("openai retry failed",
			"provider", c.provider,
			"provider_error", err,
			"openai_error", openAIErr,
		)
		return LLMResponse{}, openAIErr
	}
	c.logger.Info("openai answered after provider failure", "provider", c.provider)
	return resp, nil
}
