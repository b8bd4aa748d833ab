package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-rates-service/internal/application"
	infraconfig "currency-rates-service/internal/infrastructure/config"
	"currency-rates-service/internal/infrastructure/logx"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockPrefix = "rates:lock:"

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var _ application.KeyLocker = (*Locker)(nil)

// Locker is a KeyLocker shared by every process using the same Redis.
// A held lock expires after TTL so a crashed holder cannot block a currency forever.
type Locker struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{Client: client, TTL: ttl, Retry: infraconfig.DefaultLockRetry}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	rkey := lockPrefix + key
	retry := l.Retry
	if retry <= 0 {
		retry = infraconfig.DefaultLockRetry
	}

	t := time.NewTicker(retry)
	defer t.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, rkey, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() {
		// The caller's context may already be done; release on a fresh one.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{rkey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logx.L().Warn("release lock failed", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
