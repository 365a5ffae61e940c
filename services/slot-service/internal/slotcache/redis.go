package slotcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

const redisVersionKey = "slotcache:version"

// Redis is the shared cache backend for multi-replica deployments. Entries
// are stored under a namespace version; InvalidateAll bumps the version so
// existing entries become unreachable and expire on their own TTL. The
// single-flight guarantee stays per process: replicas may compute the same
// key concurrently once each.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	group  singleflight.Group
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) ([]model.Slot, bool, error) {
	version, err := r.version(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("slot cache version: %w", err)
	}
	k := fmt.Sprintf("slotcache:v%d:%s", version, key.String())

	raw, err := r.client.Get(ctx, k).Bytes()
	if err == nil {
		var slots []model.Slot
		if err := json.Unmarshal(raw, &slots); err == nil {
			return slots, true, nil
		}
		// Undecodable entry: fall through and recompute over it.
	} else if err != redis.Nil {
		return nil, false, fmt.Errorf("slot cache get: %w", err)
	}

	v, err, _ := r.group.Do(k, func() (any, error) {
		slots, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		r.store(ctx, k, version, slots)
		return slots, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]model.Slot), false, nil
}

// InvalidateAll bumps the namespace version. Orphaned entries are reaped by
// their TTL.
func (r *Redis) InvalidateAll(ctx context.Context) error {
	if err := r.client.Incr(ctx, redisVersionKey).Err(); err != nil {
		return fmt.Errorf("slot cache invalidate: %w", err)
	}
	return nil
}

func (r *Redis) version(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, redisVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// store writes the computed entry unless an invalidation moved the namespace
// version while the compute was in flight. Store failures are swallowed: the
// caller already has the result and the next miss recomputes.
func (r *Redis) store(ctx context.Context, k string, version int64, slots []model.Slot) {
	current, err := r.version(ctx)
	if err != nil || current != version {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	r.client.Set(ctx, k, raw, r.ttl)
}
