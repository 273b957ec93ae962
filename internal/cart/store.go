package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPattern = "cart:%s"

// Store persists carts in Redis for the lifetime of a customer session. Carts
// are ephemeral: an expired key simply means an empty cart.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string {
	return fmt.Sprintf(keyPattern, sessionID)
}

// Load returns the session's cart, or a fresh empty cart when none exists.
func (s *Store) Load(ctx context.Context, sessionID string) (*Cart, error) {
	raw, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return New(), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}

	c := New()
	if err := json.Unmarshal(raw, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.Lines == nil {
		c.Lines = make(map[string]Line)
	}
	return c, nil
}

// Save writes the cart back and refreshes the session TTL.
func (s *Store) Save(ctx context.Context, sessionID string, c *Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.rdb.Set(ctx, key(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete drops the session's cart entirely.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
