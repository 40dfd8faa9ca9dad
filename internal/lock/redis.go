package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const retryInterval = 25 * time.Millisecond

type redisDoctorLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker that uses a per doctor Redis key.
// Acquisition is retried until wait elapses; the key expires after ttl so a
// crashed holder cannot block the doctor forever.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisDoctorLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisDoctorLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:doctor:%s", doctorID.String())
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// Release on a fresh context so a cancelled request still unlocks.
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisDoctorLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire doctor lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisDoctorLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}
