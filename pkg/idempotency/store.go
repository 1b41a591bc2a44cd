package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates consumed events with short-lived Redis keys. It is a
// fast-path filter only: the postgres stores stay idempotent on their own,
// so a missed dedup is safe.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// EventKey scopes dedup to the settlement event, not the kafka offset, so
// a re-dispatched outbox row for the same payment is also filtered.
func (s *Store) EventKey(eventType, paymentID string) string {
	return fmt.Sprintf("idem:%s:%s", eventType, paymentID)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the key after successful processing. Marking afterwards
// (not on first sight) keeps failed settlements eligible for redelivery.
func (s *Store) Mark(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, "1", s.ttl).Err()
}
