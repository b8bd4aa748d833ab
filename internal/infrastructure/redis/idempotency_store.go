package redisstore

import (
	"context"
	"time"

	"currency-rates-service/internal/application"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "rates:idem:"

var _ application.IdempotencyStore = (*Store)(nil)

// Store reserves idempotency keys with SETNX; a reservation expires after TTL.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func (s *Store) TryReserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.Client.SetNX(ctx, idempotencyPrefix+key, "1", s.TTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, idempotencyPrefix+key).Err()
}
