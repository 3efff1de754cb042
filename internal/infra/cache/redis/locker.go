package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"staypay/internal/app/policies"
)

// unlockScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-key lock shared by every process using the same Redis.
type Locker struct {
	Client *redis.Client
	Prefix string
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// Wait is how long Lock polls before giving up with ErrLockNotAcquired.
	Wait   time.Duration
	Poll   time.Duration
	Logger *slog.Logger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redis: locker client missing")
	}
	fullKey := l.prefix() + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait())
	for {
		ok, err := l.Client.SetNX(ctx, fullKey, token, l.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(fullKey, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", policies.ErrLockNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll()):
		}
	}
}

func (l *Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.Client, []string{key}, token).Err(); err != nil && l.Logger != nil {
		l.Logger.Warn("redis unlock failed", "key", key, "error", err)
	}
}

func (l *Locker) prefix() string {
	if l.Prefix == "" {
		return "staypay:lock:"
	}
	return l.Prefix
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return 30 * time.Second
	}
	return l.TTL
}

func (l *Locker) wait() time.Duration {
	if l.Wait <= 0 {
		return l.ttl()
	}
	return l.Wait
}

func (l *Locker) poll() time.Duration {
	if l.Poll <= 0 {
		return 50 * time.Millisecond
	}
	return l.Poll
}

var _ policies.Locker = (*Locker)(nil)
