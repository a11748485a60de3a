package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusProcessing = "processing"
	statusCompleted  = "completed"
)

// Commands is the subset of the redis client the store relies on.
type Commands interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store claims trigger ids in Redis so a redelivered message is not worked on
// twice at the same time. Claims expire after ttl.
type Store struct {
	client Commands
	prefix string
	ttl    time.Duration
}

func NewStore(client Commands, prefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

// Claim returns false when another worker holds or already completed id.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(id), statusProcessing, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claiming %s: %w", id, err)
	}
	return ok, nil
}

func (s *Store) Complete(ctx context.Context, id string) error {
	if err := s.client.Set(ctx, s.key(id), statusCompleted, s.ttl).Err(); err != nil {
		return fmt.Errorf("completing %s: %w", id, err)
	}
	return nil
}

// Release drops the claim so a later redelivery can try again.
func (s *Store) Release(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("releasing %s: %w", id, err)
	}
	return nil
}
