package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps short-lived password-reset codes.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(addr, password string, db int, resetTTL time.Duration) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: resetTTL,
	}
}

// NewWithClient is used by tests to inject a client.
func NewWithClient(rdb *redis.Client, resetTTL time.Duration) *Store {
	return &Store{rdb: rdb, ttl: resetTTL}
}

func resetKey(email string) string { return "reset_code:" + email }

func (s *Store) SetResetCode(ctx context.Context, email, code string) error {
	return s.rdb.Set(ctx, resetKey(email), code, s.ttl).Err()
}

// GetResetCode returns redis.Nil when no code is pending.
func (s *Store) GetResetCode(ctx context.Context, email string) (string, error) {
	return s.rdb.Get(ctx, resetKey(email)).Result()
}

func (s *Store) DeleteResetCode(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, resetKey(email)).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
