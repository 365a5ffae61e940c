package storage

import (
	"context"
	"time"

	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
)

// MetricsStore is the postgres implementation of metrics.Store. Durations are
// stored as milliseconds.
type MetricsStore struct {
	pool *db.Pool
}

func NewMetricsStore(pool *db.Pool) *MetricsStore {
	return &MetricsStore{pool: pool}
}

func (s *MetricsStore) InsertRequest(ctx context.Context, r metrics.Request) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO slot_metrics
			(id, service_type_id, staff_id, date_from, date_to, timezone,
			duration_ms, slots_returned, cache_hit, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10)
	`, r.ID, r.ServiceTypeID, r.StaffID, r.DateFrom, r.DateTo, r.Timezone,
		r.Duration.Milliseconds(), r.SlotsReturned, r.CacheHit, r.CreatedAt)
	return err
}

func (s *MetricsStore) ListRequestsSince(ctx context.Context, since time.Time) ([]metrics.Request, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, service_type_id::text, COALESCE(staff_id::text, ''),
			date_from, date_to, timezone, duration_ms, slots_returned, cache_hit, created_at
		FROM slot_metrics
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []metrics.Request
	for rows.Next() {
		var r metrics.Request
		var durationMS int64
		if err := rows.Scan(
			&r.ID,
			&r.ServiceTypeID,
			&r.StaffID,
			&r.DateFrom,
			&r.DateTo,
			&r.Timezone,
			&durationMS,
			&r.SlotsReturned,
			&r.CacheHit,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *MetricsStore) DeleteRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM slot_metrics WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
