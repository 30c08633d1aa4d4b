package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/cartoncaps-assistant/internal/config"
	"github.com/wolfman30/cartoncaps-assistant/internal/conversation"
	"github.com/wolfman30/cartoncaps-assistant/internal/datastore"
	"github.com/wolfman30/cartoncaps-assistant/pkg/logging"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRepository opens the relational store. When the store cannot be
// opened the repository is returned in unavailable mode and the *sql.DB is nil;
// the service keeps running and data lookups degrade per turn.
func BuildRepository(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*datastore.Repository, *sql.DB) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return datastore.NewRepository(nil, logger), nil
	}
	db, err := datastore.Open(ctx, datastore.OpenOptions{
		Driver: cfg.DatabaseDriver,
		Path:   cfg.DatabasePath,
		URL:    cfg.DatabaseURL,
	})
	if err != nil {
		logger.Warn("database unavailable; data lookups will degrade",
			"driver", cfg.DatabaseDriver,
			"path", cfg.DatabasePath,
			"error", err,
		)
		return datastore.NewRepository(nil, logger), nil
	}
	logger.Info("database connected", "driver", cfg.DatabaseDriver)
	return datastore.NewRepository(db, logger), db
}

// BuildSessionStore selects the session backend. The Redis lock TTL outlives
// the model timeout so a slow turn does not lose its lock mid-flight.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (conversation.SessionStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	backend := SessionBackendMemory
	if cfg != nil && cfg.SessionBackend != "" {
		backend = cfg.SessionBackend
	}

	switch backend {
	case SessionBackendMemory:
		logger.Info("using in-memory session store")
		return conversation.NewMemorySessionStore(), nil
	case SessionBackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: session backend redis requires REDIS_ADDR")
		}
		// Zero falls back to the store default.
		store, err := conversation.NewRedisSessionStore(redisClient, cfg.SessionTTL, 2*cfg.LLMTimeout)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: redis session store: %w", err)
		}
		logger.Info("using redis session store", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL.String())
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown session backend %q", backend)
	}
}
