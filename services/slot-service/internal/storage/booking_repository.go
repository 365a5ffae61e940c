package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const bookingColumns = `id::text, COALESCE(staff_id::text, ''), service_type_id::text, start_time, end_time, status, created_at`

// FindBookings is the engine's bulk ledger read: every booking for the given
// staff that intersects [intervalStart, intervalEnd) and is not in one of the
// excluded statuses, ordered by start time.
func (r *BookingRepository) FindBookings(ctx context.Context, staffIDs []string, intervalStart, intervalEnd time.Time, excludeStatuses []model.BookingStatus) ([]model.Booking, error) {
	excluded := make([]string, len(excludeStatuses))
	for i, s := range excludeStatuses {
		excluded[i] = string(s)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id = ANY($1)
			AND status <> ALL($2::text[])
			AND start_time < $4
			AND end_time > $3
		ORDER BY start_time ASC
	`, staffIDs, excluded, intervalStart, intervalEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBookings(rows)
}

// LatestBooking returns the most recently created counting booking for the
// service type across the given staff, or nil when there is none. It anchors
// round robin assignment.
func (r *BookingRepository) LatestBooking(ctx context.Context, serviceTypeID string, staffIDs []string) (*model.Booking, error) {
	var b model.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE service_type_id = $1
			AND staff_id = ANY($2)
			AND status NOT IN ('cancelled', 'no_show')
		ORDER BY created_at DESC
		LIMIT 1
	`, serviceTypeID, staffIDs).Scan(&b.ID, &b.StaffID, &b.ServiceTypeID, &b.Start, &b.End, &b.Status, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CountsByStaff counts counting bookings per staff member that start in
// [start, end). Staff with no bookings are absent from the map.
func (r *BookingRepository) CountsByStaff(ctx context.Context, staffIDs []string, start, end time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT staff_id::text, COUNT(*)
		FROM bookings
		WHERE staff_id = ANY($1)
			AND status NOT IN ('cancelled', 'no_show')
			AND start_time >= $2
			AND start_time < $3
		GROUP BY staff_id
	`, staffIDs, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int, len(staffIDs))
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings (staff_id, service_type_id, start_time, end_time, status)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5)
		RETURNING id
	`, b.StaffID, b.ServiceTypeID, b.Start, b.End, b.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Booking, error) {
	var b model.Booking
	err := tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&b.ID, &b.StaffID, &b.ServiceTypeID, &b.Start, &b.End, &b.Status, &b.CreatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, status model.BookingStatus) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.StaffID, &b.ServiceTypeID, &b.Start, &b.End, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
