// Package metrics records one row per slot generation request and serves
// read-side aggregates over them. Recording is fire and forget so a slow or
// failing metrics store can never slow down slot serving.
package metrics

import (
	"context"
	"time"
)

// SlowThreshold classifies a generation request as slow.
const SlowThreshold = 2 * time.Second

// DefaultRetention is how long request rows are kept before the sweep
// deletes them.
const DefaultRetention = 90 * 24 * time.Hour

// Request is one recorded slot generation.
type Request struct {
	ID            string
	ServiceTypeID string
	StaffID       string
	DateFrom      string
	DateTo        string
	Timezone      string
	Duration      time.Duration
	SlotsReturned int
	CacheHit      bool
	CreatedAt     time.Time
}

// Grade buckets a request duration for reporting.
func Grade(d time.Duration) string {
	switch {
	case d < 500*time.Millisecond:
		return "excellent"
	case d < time.Second:
		return "good"
	case d <= SlowThreshold:
		return "acceptable"
	default:
		return "slow"
	}
}

// Store persists request rows. The pg implementation lives in
// internal/storage; Memory below backs tests and single-node runs without a
// database.
type Store interface {
	InsertRequest(ctx context.Context, r Request) error
	ListRequestsSince(ctx context.Context, since time.Time) ([]Request, error)
	DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
