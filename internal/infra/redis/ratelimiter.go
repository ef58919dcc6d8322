package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cobrify/dunning-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	ratePrefix             = "dunning:rate:"
	defaultSendsPerSec     = 20
	waitBackoff            = 25 * time.Millisecond
	rateLimitWindowSeconds = 1
)

// allowScript counts sends in the current one-second window and rejects once
// the tenant limit is exceeded.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter bounds per-tenant message dispatch using a fixed one-second
// window shared across worker processes.
type RedisRateLimiter struct {
	client      *goredis.Client
	sendsPerSec int64
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, sendsPerSec int) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	limit := int64(sendsPerSec)
	if limit <= 0 {
		limit = defaultSendsPerSec
	}

	return &RedisRateLimiter{
		client:      client,
		sendsPerSec: limit,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (l *RedisRateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	key := l.windowKey(tenantID)

	allowed, err := allowScript.Run(ctx, l.client, []string{key}, l.sendsPerSec, rateLimitWindowSeconds).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}

func (l *RedisRateLimiter) Wait(ctx context.Context, tenantID string) error {
	for {
		allowed, err := l.Allow(ctx, tenantID)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		if err := l.sleep(ctx, waitBackoff); err != nil {
			return err
		}
	}
}

func (l *RedisRateLimiter) windowKey(tenantID string) string {
	tenant := strings.TrimSpace(tenantID)
	if tenant == "" {
		tenant = "unknown"
	}
	return fmt.Sprintf("%s%s:%d", ratePrefix, tenant, l.now().Unix())
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
