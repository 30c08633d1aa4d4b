package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"
)

// LoadAWSConfig resolves AWS settings from config. Static keys and an endpoint
// override (localstack, minio) are optional.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("bootstrap: config is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		opts = append(opts, awsconfig.WithBaseEndpoint(endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return awsCfg, nil
}

// LLM is the selected model client. A nil Client means generation is disabled
// and the service answers with the placeholder reply.
type LLM struct {
	Client   conversation.LLMClient
	Provider string
	close    func() error
}

// Close releases provider resources.
func (l *LLM) Close() error {
	if l == nil || l.close == nil {
		return nil
	}
	return l.close()
}

// BuildLLMClient selects the primary provider from LLM_PROVIDER. When an OpenAI
// key is configured and the primary is another provider, OpenAI serves as the
// fallback. Missing credentials disable the provider rather than failing startup.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*LLM, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	provider := cfg.LLMProvider
	if provider == "" {
		provider = ProviderGemini
	}

	llm := &LLM{Provider: provider}
	switch provider {
	case ProviderGemini:
		if strings.TrimSpace(cfg.GoogleAPIKey) == "" {
			logger.Warn("GOOGLE_API_KEY not set; gemini disabled")
			break
		}
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		llm.Client = client
		llm.close = client.Close
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("BEDROCK_MODEL_ID not set; bedrock disabled")
			break
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client, err := conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		llm.Client = client
	case ProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			logger.Warn("OPENAI_API_KEY not set; openai disabled")
			break
		}
		client, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		llm.Client = client
		return llm, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}

	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		if llm.Client != nil {
			logger.Info("llm provider configured", "provider", provider)
		}
		return llm, nil
	}
	fallback, err := conversation.NewOpenAILLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if llm.Client == nil {
		logger.Info("primary llm disabled; using openai", "primary", provider)
		llm.Client = fallback
		llm.Provider = ProviderOpenAI
		return llm, nil
	}
	llm.Client = conversation.NewFallbackLLMClient(provider, llm.Client, fallback, logger)
	logger.Info("llm provider configured", "provider", provider, "fallback", ProviderOpenAI)
	return llm, nil
}
