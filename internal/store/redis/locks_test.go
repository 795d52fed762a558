package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"studioops/backend/internal/store"
)

func newLocks(t *testing.T) (*ChargeLocks, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewChargeLocks(client), mr
}

func TestChargeLocks_ExclusiveUntilReleased(t *testing.T) {
	locks, _ := newLocks(t)
	ctx := context.Background()
	id := uuid.New()

	token, err := locks.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, id, time.Minute)
	require.ErrorIs(t, err, store.ErrChargeInFlight)

	otherID := uuid.New()
	other, err := locks.Acquire(ctx, otherID, time.Minute)
	require.NoError(t, err)
	require.NoError(t, locks.Release(ctx, otherID, other))

	require.NoError(t, locks.Release(ctx, id, "not-the-owner"))
	_, err = locks.Acquire(ctx, id, time.Minute)
	require.ErrorIs(t, err, store.ErrChargeInFlight)

	require.NoError(t, locks.Release(ctx, id, token))
	again, err := locks.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	require.NoError(t, locks.Release(ctx, id, again))
}

func TestChargeLocks_ExpiredLockNotReleasedByOldHolder(t *testing.T) {
	locks, mr := newLocks(t)
	ctx := context.Background()
	id := uuid.New()

	stale, err := locks.Acquire(ctx, id, time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	_, err = locks.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)

	require.NoError(t, locks.Release(ctx, id, stale))
	require.True(t, mr.Exists(chargeKeyPrefix+id.String()))

	_, err = locks.Acquire(ctx, id, time.Minute)
	require.ErrorIs(t, err, store.ErrChargeInFlight)
}
