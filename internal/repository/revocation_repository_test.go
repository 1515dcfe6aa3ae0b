package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevocationRepo(t *testing.T) (*RevocationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRevocationRepository(client), mr
}

func TestRevokeAndCheck(t *testing.T) {
	repo, _ := newRevocationRepo(t)
	ctx := context.Background()

	revoked, err := repo.IsRevoked(ctx, "revoked:access:abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, repo.Revoke(ctx, "revoked:access:abc", time.Minute))

	revoked, err = repo.IsRevoked(ctx, "revoked:access:abc")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevokeEntryExpiresWithToken(t *testing.T) {
	repo, mr := newRevocationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Revoke(ctx, "revoked:access:xyz", 30*time.Second))

	mr.FastForward(31 * time.Second)

	revoked, err := repo.IsRevoked(ctx, "revoked:access:xyz")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeNeverShortensExistingTTL(t *testing.T) {
	repo, mr := newRevocationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Revoke(ctx, "revoked:access:k", 10*time.Minute))
	require.NoError(t, repo.Revoke(ctx, "revoked:access:k", time.Minute))

	assert.GreaterOrEqual(t, mr.TTL("revoked:access:k"), 9*time.Minute)

	// A longer revocation extends the entry.
	require.NoError(t, repo.Revoke(ctx, "revoked:access:k", time.Hour))
	assert.GreaterOrEqual(t, mr.TTL("revoked:access:k"), 59*time.Minute)
}

func TestRevokeZeroTTLIsNoop(t *testing.T) {
	repo, _ := newRevocationRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Revoke(ctx, "revoked:access:expired", 0))

	revoked, err := repo.IsRevoked(ctx, "revoked:access:expired")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestIsRevokedFailsWhenCacheDown(t *testing.T) {
	repo, mr := newRevocationRepo(t)
	ctx := context.Background()

	mr.Close()

	_, err := repo.IsRevoked(ctx, "revoked:access:any")
	assert.Error(t, err)
}
