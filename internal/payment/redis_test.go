package payment

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-bot/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestPendingStoreReplacesPreviousPurchase(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewPendingStore(rdb, time.Hour, 24*time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	first := PendingToken{Token: "t1", UserID: "u", Plan: models.PlanWeek, Gateway: "cryptobot", Reference: "1", CreatedAt: now}
	prev, err := store.Save(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, prev)

	second := PendingToken{Token: "t2", UserID: "u", Plan: models.PlanMonth, Gateway: "cryptomus", Reference: "abc", CreatedAt: now}
	prev, err = store.Save(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "t1", prev.Token)

	// The replaced invoice may still be paid, so it stays resolvable.
	old, err := store.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanWeek, old.Plan)
	old, err = store.FindByReference(ctx, "cryptobot", "1")
	require.NoError(t, err)
	assert.Equal(t, "t1", old.Token)

	got, err := store.FindByReference(ctx, "cryptomus", "abc")
	require.NoError(t, err)
	assert.Equal(t, models.PlanMonth, got.Plan)
	assert.Equal(t, now.Add(time.Hour).Unix(), got.ExpiresAt.Unix())

	current, err := store.ForUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "t2", current.Token)

	// Deleting the replaced token must not free the user's current slot.
	require.NoError(t, store.Delete(ctx, first))
	current, err = store.ForUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "t2", current.Token)
	_, err = store.FindByReference(ctx, "cryptobot", "1")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, store.Delete(ctx, second))
	_, err = store.ForUser(ctx, "u")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestPendingStoreTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewPendingStore(rdb, time.Minute, time.Hour)
	ctx := context.Background()

	_, err := store.Save(ctx, PendingToken{Token: "t", UserID: "u", Gateway: "cryptobot", Reference: "1", CreatedAt: time.Now()})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.ForUser(ctx, "u")
	assert.ErrorIs(t, err, ErrTokenNotFound, "user slot frees after the ttl")
	got, err := store.FindByReference(ctx, "cryptobot", "1")
	require.NoError(t, err)
	assert.True(t, got.Expired(time.Now().Add(2*time.Minute)))

	mr.FastForward(time.Hour)
	_, err = store.Get(ctx, "t")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = store.FindByReference(ctx, "cryptobot", "1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestPendingStoreRetentionNeverBelowTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewPendingStore(rdb, time.Hour, time.Minute)
	ctx := context.Background()

	_, err := store.Save(ctx, PendingToken{Token: "t", UserID: "u", Gateway: "cryptobot", Reference: "1", CreatedAt: time.Now()})
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)
	_, err = store.Get(ctx, "t")
	assert.NoError(t, err)
}

func TestSettlementGuard(t *testing.T) {
	_, rdb := newTestRedis(t)
	guard := NewSettlementGuard(rdb)
	ctx := context.Background()

	ok, err := guard.Claim(ctx, "cryptobot", "77")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Claim(ctx, "cryptobot", "77")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = guard.Claim(ctx, "cryptomus", "77")
	require.NoError(t, err)
	assert.True(t, ok, "references are scoped per gateway")

	require.NoError(t, guard.Release(ctx, "cryptobot", "77"))
	ok, err = guard.Claim(ctx, "cryptobot", "77")
	require.NoError(t, err)
	assert.True(t, ok)
}
