package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore keeps the coupon code a user applied to their cart. Entries
// expire with the session TTL and are cleared after a successful checkout.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *SessionStore) Apply(ctx context.Context, userID, code string) error {
	if err := s.client.Set(ctx, sessionKey(userID), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Current returns the applied code, or "" when none is set.
func (s *SessionStore) Current(ctx context.Context, userID string) (string, error) {
	code, err := s.client.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return code, nil
}

func (s *SessionStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func sessionKey(userID string) string {
	return fmt.Sprintf("coupon:%s", userID)
}
