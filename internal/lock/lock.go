package lock

import (
	"context"
	"time"
)

// SlotLocker serializes work on one slot occurrence across overlapping runs.
type SlotLocker interface {
	// Acquire takes the lock for key, returning false when another holder
	// owns it. The lock expires after ttl even if never released.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release drops the lock if this process still holds it.
	Release(ctx context.Context, key string) error
}
