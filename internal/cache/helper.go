package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(s, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss or a Redis failure it calls fetch, which
// must populate dest, then stores dest with ttl on a best-effort basis.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if found, err := GetJSON(ctx, key, dest); err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// Revoke marks a token id as revoked until ttl elapses.
func Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if client == nil {
		return errors.New("token revocation requires redis")
	}
	if ttl <= 0 {
		return nil
	}
	return client.Set(ctx, RevokedTokenKey(tokenID), 1, ttl).Err()
}

// IsRevoked reports whether tokenID was revoked. Without Redis nothing is revoked.
func IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if client == nil || tokenID == "" {
		return false, nil
	}
	n, err := client.Exists(ctx, RevokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
