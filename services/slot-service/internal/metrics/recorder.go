package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder fans recorded requests out to the store and the Prometheus
// surface. Record returns before the store write completes; the caller's
// request latency never includes metrics persistence.
type Recorder struct {
	store Store
	ops   *Ops
	log   *slog.Logger
	now   func() time.Time

	wg sync.WaitGroup
}

func NewRecorder(store Store, ops *Ops, log *slog.Logger) *Recorder {
	return &Recorder{store: store, ops: ops, log: log, now: time.Now}
}

// Record persists one request row asynchronously. Store failures are logged
// and dropped.
func (r *Recorder) Record(ctx context.Context, req Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = r.now()
	}
	r.ops.ObserveRequest(req)

	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.store.InsertRequest(writeCtx, req); err != nil {
			r.log.Warn("metrics insert failed", "error", err, "service_type_id", req.ServiceTypeID)
		}
	}()
}

// Drain waits for in-flight Record writes, for shutdown and tests.
func (r *Recorder) Drain() {
	r.wg.Wait()
}

// Stats aggregates the last days of recorded requests.
func (r *Recorder) Stats(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = 7
	}
	requests, err := r.store.ListRequestsSince(ctx, r.now().AddDate(0, 0, -days))
	if err != nil {
		return Stats{}, err
	}
	return Aggregate(requests, days), nil
}

// Trend returns the day-bucketed request trend for the last days.
func (r *Recorder) Trend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 7
	}
	requests, err := r.store.ListRequestsSince(ctx, r.now().AddDate(0, 0, -days+1))
	if err != nil {
		return nil, err
	}
	return TrendOf(requests, days, r.now()), nil
}

// RunRetention deletes request rows older than retention every interval until
// ctx is cancelled. Run it in its own goroutine.
func (r *Recorder) RunRetention(ctx context.Context, interval, retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := r.store.DeleteRequestsBefore(ctx, r.now().Add(-retention))
			if err != nil {
				r.log.Warn("metrics retention sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				r.log.Info("metrics retention sweep", "deleted", deleted)
			}
		}
	}
}
