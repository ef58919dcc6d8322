package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cobrify/dunning-engine/internal/lock"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const slotLockPrefix = "dunning:slotlock:"

// releaseScript deletes the lock only when the caller still owns it, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ lock.SlotLocker = (*RedisSlotLocker)(nil)

// RedisSlotLocker serializes slot dispatch across overlapping evaluation runs
// with SET NX PX and token-checked release.
type RedisSlotLocker struct {
	client *goredis.Client

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisSlotLocker(client *goredis.Client) (*RedisSlotLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisSlotLocker{
		client: client,
		tokens: make(map[string]string),
	}, nil
}

func (l *RedisSlotLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, slotLockPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()

	return true, nil
}

func (l *RedisSlotLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, held := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()

	if !held {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{slotLockPrefix + key}, token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}
