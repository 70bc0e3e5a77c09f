// Package redis provides Redis-backed infrastructure components.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"merx/internal/domain/cart"
)

// DefaultDraftTTL is how long a held cart survives without activity.
const DefaultDraftTTL = 72 * time.Hour

// CartStore persists cart drafts per operator. Implements cart.Store.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ cart.Store = (*CartStore)(nil)

// NewCartStore creates a cart store over an existing client.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &CartStore{client: client, ttl: ttl}
}

// NewClient creates a Redis client from connection parameters.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *CartStore) key(operatorID string) string {
	return "merx:cart:" + operatorID
}

// Ping verifies connectivity.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *CartStore) Close() error {
	return s.client.Close()
}

// Get loads the operator's draft. Returns an empty draft when none is held.
func (s *CartStore) Get(ctx context.Context, operatorID string) (*cart.Draft, error) {
	val, err := s.client.Get(ctx, s.key(operatorID)).Result()
	if err == redis.Nil {
		return &cart.Draft{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart draft: %w", err)
	}

	var draft cart.Draft
	if err := json.Unmarshal([]byte(val), &draft); err != nil {
		return nil, fmt.Errorf("unmarshal cart draft: %w", err)
	}
	return &draft, nil
}

// Save stores the draft, refreshing its TTL.
func (s *CartStore) Save(ctx context.Context, operatorID string, draft *cart.Draft) error {
	if draft == nil {
		return nil
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal cart draft: %w", err)
	}
	if err := s.client.Set(ctx, s.key(operatorID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart draft: %w", err)
	}
	return nil
}

// Clear drops the operator's draft.
func (s *CartStore) Clear(ctx context.Context, operatorID string) error {
	if err := s.client.Del(ctx, s.key(operatorID)).Err(); err != nil {
		return fmt.Errorf("clear cart draft: %w", err)
	}
	return nil
}
