// Package slotcache caches computed slot sets keyed by the full generation
// request. Invalidation is deliberately coarse: any booking, rule or service
// type change clears everything, trading hit rate for correctness.
package slotcache

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// DefaultTTL bounds staleness even if an invalidation is lost.
const DefaultTTL = 5 * time.Minute

// Key identifies one cached slot set. Two requests that would produce the
// same slots map to the same key; anything that can change the output is part
// of it.
type Key struct {
	ServiceTypeID string
	StartDate     string // YYYY-MM-DD
	EndDate       string // YYYY-MM-DD
	Timezone      string
	StaffID       string // empty when no staff pin
}

func (k Key) String() string {
	return fmt.Sprintf("slots:%s:%s:%s:%s:%s", k.ServiceTypeID, k.StartDate, k.EndDate, k.Timezone, k.StaffID)
}

// ComputeFunc produces the slot set on a cache miss.
type ComputeFunc func(ctx context.Context) ([]model.Slot, error)

// Cache is the slot cache contract. GetOrCompute collapses concurrent misses
// for the same key into a single compute per process, and reports whether the
// result came from the cache. InvalidateAll makes every cached entry
// unreachable; a compute already in flight when invalidation lands still
// returns to its callers but is not stored.
type Cache interface {
	GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (slots []model.Slot, hit bool, err error)
	InvalidateAll(ctx context.Context) error
}
