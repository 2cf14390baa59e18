package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger(time.Hour)
	ledger.now = func() time.Time { return now }

	seen, err := ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, "m1"))
	seen, err = ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	now = now.Add(time.Hour)
	seen, err = ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Zero(t, ledger.Len())

	assert.Error(t, ledger.Record(ctx, ""))
}

func TestMemoryLedgerWithoutTTL(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(0)
	require.NoError(t, ledger.Record(ctx, "m1"))
	ledger.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }

	seen, err := ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryLedgerSweepsExpiredOnRecord(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewMemoryLedger(time.Hour)
	ledger.now = func() time.Time { return now }

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, ledger.Record(ctx, id))
	}
	now = now.Add(30 * time.Minute)
	require.NoError(t, ledger.Record(ctx, "m4"))
	assert.Equal(t, 4, ledger.Len())

	// m1..m3 expire without ever being looked up again.
	now = now.Add(45 * time.Minute)
	require.NoError(t, ledger.Record(ctx, "m5"))
	assert.Equal(t, 2, ledger.Len())

	seen, err := ledger.Seen(ctx, "m4")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	ledger := NewRedisLedger(client, "", 2*time.Hour)

	seen, err := ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ledger.Record(ctx, "m1"))
	first, err := mr.Get(DefaultLedgerKeyPrefix + "m1")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, mr.TTL(DefaultLedgerKeyPrefix+"m1"))

	require.NoError(t, ledger.Record(ctx, "m1"))
	second, err := mr.Get(DefaultLedgerKeyPrefix + "m1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	seen, err = ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(3 * time.Hour)
	seen, err = ledger.Seen(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisLedgerUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err := NewRedisLedger(client, "t:", 0).Seen(context.Background(), "m1")
	assert.Error(t, err)
}
