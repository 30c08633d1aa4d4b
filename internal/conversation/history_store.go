package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSessionTTL     = 24 * time.Hour
	defaultSessionLockTTL = 2 * time.Minute
	sessionLockRetry      = 25 * time.Millisecond
)

// unlockScript deletes the lock key only if it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisSessionStore keeps each session as a Redis list of JSON messages.
type RedisSessionStore struct {
	redis   *redis.Client
	tracer  trace.Tracer
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisSessionStore builds a store. ttl bounds idle sessions; lockTTL must
// exceed the longest turn (model timeout included).
func NewRedisSessionStore(client *redis.Client, ttl, lockTTL time.Duration) (*RedisSessionStore, error) {
	if client == nil {
		return nil, errors.New("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if lockTTL <= 0 {
		lockTTL = defaultSessionLockTTL
	}
	return &RedisSessionStore{
		redis:   client,
		tracer:  otel.Tracer("cartoncaps.internal.conversation.sessions"),
		ttl:     ttl,
		lockTTL: lockTTL,
	}, nil
}

func (s *RedisSessionStore) GetOrCreate(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	raw, err := s.redis.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	history := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to decode session message: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, msg Message) error {
	ctx, span := s.tracer.Start(ctx, "conversation.append_session")
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal message: %w", err)
	}
	key := sessionKey(sessionID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to append message: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Replace(ctx context.Context, sessionID string, history []Message) error {
	ctx, span := s.tracer.Start(ctx, "conversation.replace_session")
	defer span.End()

	values := make([]any, 0, len(history))
	for _, msg := range history {
		data, err := json.Marshal(msg)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("conversation: failed to marshal message: %w", err)
		}
		values = append(values, data)
	}
	key := sessionKey(sessionID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to replace session: %w", err)
	}
	return nil
}

// Lock acquires a per-session lock with SET NX PX and a random token. The
// lock expires on its own after lockTTL if the holder dies.
func (s *RedisSessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	ctx, span := s.tracer.Start(ctx, "conversation.lock_session")
	defer span.End()

	key := sessionLockKey(sessionID)
	token := uuid.NewString()
	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to lock session: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sessionLockRetry):
		}
	}

	unlock := func() {
		// Release with a fresh context so a cancelled request still frees the lock.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = unlockScript.Run(releaseCtx, s.redis, []string{key}, token).Err()
	}
	return unlock, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func sessionLockKey(id string) string {
	return fmt.Sprintf("session_lock:%s", id)
}
