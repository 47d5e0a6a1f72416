package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrLocked is returned when another verification holds the meter
var ErrLocked = errors.New("meter verification already in progress")

// MeterLocker serializes verifications of the same meter across workers.
// A nil *MeterLocker is valid and never locks.
type MeterLocker struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

// NewMeterLocker returns nil when client is nil
func NewMeterLocker(client *redis.Client, ttl time.Duration) *MeterLocker {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MeterLocker{
		client: client,
		script: redis.NewScript(releaseScript),
		ttl:    ttl,
	}
}

// Acquire takes the meter lock and returns its release func
func (l *MeterLocker) Acquire(ctx context.Context, meterID string) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return func(context.Context) error { return nil }, nil
	}
	if meterID == "" {
		return nil, errors.New("lock key is empty")
	}

	key := lockKey(meterID)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire meter lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func(ctx context.Context) error {
		return l.script.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}

func lockKey(meterID string) string {
	return "meter-verification:lock:" + meterID
}
