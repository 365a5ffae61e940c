package slotcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

func newRedisCache(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, time.Minute), mr
}

func TestRedis_MissThenHit(t *testing.T) {
	cache, _ := newRedisCache(t)
	computes := 0
	compute := func(context.Context) ([]model.Slot, error) {
		computes++
		return someSlots(2), nil
	}

	slots, hit, err := cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, slots, 2)

	slots, hit, err = cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, slots, 2)
	require.Equal(t, 1, computes)
}

func TestRedis_RoundTripPreservesSlots(t *testing.T) {
	cache, _ := newRedisCache(t)
	want := someSlots(3)
	want[1].Available = false
	want[1].BookedCount = 1

	_, _, err := cache.GetOrCompute(context.Background(), testKey, func(context.Context) ([]model.Slot, error) {
		return want, nil
	})
	require.NoError(t, err)

	got, hit, err := cache.GetOrCompute(context.Background(), testKey, func(context.Context) ([]model.Slot, error) {
		t.Fatal("must not recompute")
		return nil, nil
	})
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 3)
	require.False(t, got[1].Available)
	require.Equal(t, 1, got[1].BookedCount)
	require.True(t, got[0].Start.Equal(want[0].Start))
}

func TestRedis_InvalidateAllBumpsVersion(t *testing.T) {
	cache, _ := newRedisCache(t)
	computes := 0
	compute := func(context.Context) ([]model.Slot, error) {
		computes++
		return someSlots(1), nil
	}

	_, _, err := cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)

	require.NoError(t, cache.InvalidateAll(context.Background()))

	_, hit, err := cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)
	require.False(t, hit, "old namespace entries must be unreachable")
	require.Equal(t, 2, computes)
}

func TestRedis_EntriesExpire(t *testing.T) {
	cache, mr := newRedisCache(t)
	computes := 0
	compute := func(context.Context) ([]model.Slot, error) {
		computes++
		return someSlots(1), nil
	}

	_, _, err := cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.GetOrCompute(context.Background(), testKey, compute)
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, computes)
}

func TestRedis_UndecodableEntryRecomputed(t *testing.T) {
	cache, mr := newRedisCache(t)
	key := "slotcache:v0:" + testKey.String()
	require.NoError(t, mr.Set(key, "not json"))

	slots, hit, err := cache.GetOrCompute(context.Background(), testKey, func(context.Context) ([]model.Slot, error) {
		return someSlots(2), nil
	})
	require.NoError(t, err)
	require.False(t, hit)
	require.Len(t, slots, 2)
}
