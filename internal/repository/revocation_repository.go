package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// revokedMarker is the value stored under a denylist key; only existence
// matters.
const revokedMarker = "1"

// RevocationRepository is the TTL-bounded denylist of access token
// identifiers. Entries expire when the token they block would have expired
// anyway, which bounds the cache to currently-valid-but-revoked tokens.
type RevocationRepository struct {
	client *redis.Client
}

// NewRevocationRepository constructs a revocation repository.
func NewRevocationRepository(client *redis.Client) *RevocationRepository {
	return &RevocationRepository{client: client}
}

// Revoke marks the key as revoked for at least ttl. Re-revoking with a
// shorter ttl never shortens an existing entry: the longest requested
// lifetime wins.
func (r *RevocationRepository) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	current, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis ttl %s: %w", key, err)
	}
	if current > ttl {
		ttl = current
	}

	if err := r.client.Set(ctx, key, revokedMarker, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// IsRevoked reports whether the key is on the denylist. Single round-trip.
func (r *RevocationRepository) IsRevoked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}
