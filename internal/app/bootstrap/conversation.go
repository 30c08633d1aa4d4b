package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/internal/document"
	"github.com/wolfman30/cartoncaps-assistant/internal/observability/metrics"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

// BuildReferralLoader returns the referral FAQ loader. An S3 URI wins over the
// local path. The document is read per request, so a missing file is not an
// error here.
func BuildReferralLoader(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*document.Loader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	uri := strings.TrimSpace(cfg.ReferralDocS3URI)
	if uri == "" {
		logger.Info("referral document source", "path", cfg.ReferralDocPath)
		return document.NewLoader(document.NewFileSource(cfg.ReferralDocPath)), nil
	}

	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.AWSEndpointOverride != "" {
			o.UsePathStyle = true
		}
	})
	source, err := document.NewS3Source(client, uri)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: referral document: %w", err)
	}
	logger.Info("referral document source", "uri", source.Describe())
	return document.NewLoader(source), nil
}

// Chat holds the wired chat service and the resources behind it.
type Chat struct {
	Service    *conversation.Service
	Sessions   conversation.SessionStore
	Repository *datastore.Repository
	Metrics    *metrics.ChatMetrics
	Provider   string

	db    *sql.DB
	redis *redis.Client
	llm   *LLM
}

// BuildChat wires the datastore, session store, retrieval, prompt and model
// client into a conversation.Service. reg may be nil for the default registry.
func BuildChat(ctx context.Context, cfg *appconfig.Config, reg prometheus.Registerer, logger *logging.Logger) (*Chat, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	chatMetrics := metrics.NewChatMetrics(reg)
	repo, db := BuildRepository(ctx, cfg, logger)
	chat := &Chat{Repository: repo, Metrics: chatMetrics, db: db}

	if cfg.SessionBackend == SessionBackendRedis {
		chat.redis = BuildRedisClient(ctx, cfg, logger, true)
	}
	sessions, err := BuildSessionStore(cfg, chat.redis, logger)
	if err != nil {
		_ = chat.Close()
		return nil, err
	}
	chat.Sessions = sessions

	referral, err := BuildReferralLoader(ctx, cfg, logger)
	if err != nil {
		_ = chat.Close()
		return nil, err
	}

	llm, err := BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		_ = chat.Close()
		return nil, err
	}
	chat.llm = llm
	chat.Provider = llm.Provider

	replies := conversation.NewReplyGenerator(llm.Client, llm.Provider, cfg.LLMTimeout, logger, chatMetrics).
		WithSampling(float32(cfg.LLMTemperature), int32(cfg.LLMMaxTokens))
	chat.Service = conversation.NewService(conversation.ServiceOptions{
		Sessions:   sessions,
		Users:      repo,
		Log:        repo,
		Classifier: conversation.NewIntentClassifier(nil),
		Retriever:  conversation.NewContextRetriever(repo, referral, cfg.ProductSearchLimit, logger, chatMetrics),
		Prompts:    conversation.NewPromptBuilder(cfg.HistoryWindow),
		Replies:    replies,
		DebugInfo:  cfg.DebugInfoEnabled,
		Logger:     logger,
		Metrics:    chatMetrics,
	})
	return chat, nil
}

// Close releases the model client, Redis and the database pool.
func (c *Chat) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if err := c.llm.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
