package bootstrap

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

func testLogger() *logging.Logger {
	return logging.New("error")
}

func TestBuildRepositoryMissingFileIsUnavailable(t *testing.T) {
	cfg := &appconfig.Config{
		DatabaseDriver: "sqlite3",
		DatabasePath:   filepath.Join(t.TempDir(), "missing.sqlite"),
	}

	repo, db := BuildRepository(context.Background(), cfg, testLogger())

	assert.Nil(t, db)
	require.NotNil(t, repo)
	assert.False(t, repo.Available())
}

func TestBuildRepositoryInMemory(t *testing.T) {
	cfg := &appconfig.Config{DatabaseDriver: "sqlite3", DatabasePath: ":memory:"}

	repo, db := BuildRepository(context.Background(), cfg, testLogger())
	require.NotNil(t, db)
	t.Cleanup(func() { _ = db.Close() })

	assert.True(t, repo.Available())
}

func TestBuildRedisClient(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, testLogger(), true))

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, testLogger(), true)
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })
}

func TestBuildSessionStore(t *testing.T) {
	store, err := BuildSessionStore(&appconfig.Config{}, nil, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &conversation.MemorySessionStore{}, store)

	_, err = BuildSessionStore(&appconfig.Config{SessionBackend: "redis"}, nil, testLogger())
	require.Error(t, err)

	_, err = BuildSessionStore(&appconfig.Config{SessionBackend: "etcd"}, nil, testLogger())
	require.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err = BuildSessionStore(&appconfig.Config{SessionBackend: "redis", LLMTimeout: time.Minute}, client, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &conversation.RedisSessionStore{}, store)
}

func TestBuildLLMClient(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		cfg          appconfig.Config
		wantNil      bool
		wantProvider string
		wantType     any
	}{
		{
			name:         "gemini without key is disabled",
			cfg:          appconfig.Config{LLMProvider: "gemini"},
			wantNil:      true,
			wantProvider: ProviderGemini,
		},
		{
			name:         "openai primary",
			cfg:          appconfig.Config{LLMProvider: "openai", OpenAIAPIKey: "sk-test"},
			wantProvider: ProviderOpenAI,
			wantType:     &conversation.OpenAILLMClient{},
		},
		{
			name:         "openai replaces a disabled primary",
			cfg:          appconfig.Config{LLMProvider: "gemini", OpenAIAPIKey: "sk-test"},
			wantProvider: ProviderOpenAI,
			wantType:     &conversation.OpenAILLMClient{},
		},
		{
			name: "bedrock with openai fallback",
			cfg: appconfig.Config{
				LLMProvider:        "bedrock",
				BedrockModelID:     "anthropic.claude-3-haiku",
				AWSRegion:          "us-east-1",
				AWSAccessKeyID:     "AKIDTEST",
				AWSSecretAccessKey: "secret",
				OpenAIAPIKey:       "sk-test",
			},
			wantProvider: ProviderBedrock,
			wantType:     &conversation.FallbackLLMClient{},
		},
		{
			name:         "bedrock without model is disabled",
			cfg:          appconfig.Config{LLMProvider: "bedrock"},
			wantNil:      true,
			wantProvider: ProviderBedrock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			llm, err := BuildLLMClient(ctx, &cfg, testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = llm.Close() })

			assert.Equal(t, tt.wantProvider, llm.Provider)
			if tt.wantNil {
				assert.Nil(t, llm.Client)
				return
			}
			assert.IsType(t, tt.wantType, llm.Client)
		})
	}
}

func TestBuildLLMClientUnknownProvider(t *testing.T) {
	_, err := BuildLLMClient(context.Background(), &appconfig.Config{LLMProvider: "parrot"}, testLogger())
	require.Error(t, err)
}

func TestBuildReferralLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.pdf")
	loader, err := BuildReferralLoader(context.Background(), &appconfig.Config{ReferralDocPath: path}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, path, loader.Describe())

	loader, err = BuildReferralLoader(context.Background(), &appconfig.Config{
		ReferralDocS3URI:    "s3://docs/referrals/faq.pdf",
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "AKIDTEST",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "s3://docs/referrals/faq.pdf", loader.Describe())

	_, err = BuildReferralLoader(context.Background(), &appconfig.Config{
		ReferralDocS3URI: "s3://bucket-only",
		AWSRegion:        "us-east-1",
	}, testLogger())
	require.Error(t, err)
}

func TestBuildChatDegradedStartup(t *testing.T) {
	dir := t.TempDir()
	cfg := &appconfig.Config{
		DatabaseDriver:     "sqlite3",
		DatabasePath:       filepath.Join(dir, "missing.sqlite"),
		ReferralDocPath:    filepath.Join(dir, "missing.pdf"),
		LLMProvider:        "gemini",
		SessionBackend:     "memory",
		ProductSearchLimit: 5,
		HistoryWindow:      10,
	}

	chat, err := BuildChat(context.Background(), cfg, prometheus.NewRegistry(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, chat.Close()) })

	require.NotNil(t, chat.Service)
	assert.False(t, chat.Repository.Available())
	assert.Equal(t, ProviderGemini, chat.Provider)

	resp, err := chat.Service.Chat(context.Background(), conversation.ChatRequest{
		UserID:    "1",
		SessionID: "boot-session",
		Message:   conversation.MessageInput{Text: "How do I refer a friend?"},
	})
	require.NoError(t, err)
	assert.Equal(t, conversation.PlaceholderReply, resp.Reply.Text)
}
