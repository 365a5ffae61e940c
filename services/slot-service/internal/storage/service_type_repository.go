package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type ServiceTypeRepository struct {
	pool *db.Pool
}

func NewServiceTypeRepository(pool *db.Pool) *ServiceTypeRepository {
	return &ServiceTypeRepository{pool: pool}
}

const serviceTypeColumns = `id::text, name, duration_minutes, buffer_before_minutes, buffer_after_minutes,
	capacity_per_slot, min_notice_hours, max_days_ahead, assign_mode, active`

func (r *ServiceTypeRepository) GetServiceType(ctx context.Context, id string) (*model.ServiceType, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+serviceTypeColumns+`
		FROM service_types
		WHERE id = $1
	`, id)
	st, err := scanServiceType(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}

func (r *ServiceTypeRepository) List(ctx context.Context, activeOnly bool) ([]model.ServiceType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceTypeColumns+`
		FROM service_types
		WHERE ($1 = false OR active)
		ORDER BY name ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ServiceType
	for rows.Next() {
		st, err := scanServiceType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// UpdateScheduling rewrites the scheduling parameters of a service type.
// Name and active flag are managed elsewhere.
func (r *ServiceTypeRepository) UpdateScheduling(ctx context.Context, tx pgx.Tx, st *model.ServiceType) error {
	tag, err := tx.Exec(ctx, `
		UPDATE service_types
		SET duration_minutes = $2,
			buffer_before_minutes = $3,
			buffer_after_minutes = $4,
			capacity_per_slot = $5,
			min_notice_hours = $6,
			max_days_ahead = $7,
			assign_mode = $8,
			updated_at = now()
		WHERE id = $1
	`, st.ID,
		int(st.Duration/time.Minute),
		int(st.BufferBefore/time.Minute),
		int(st.BufferAfter/time.Minute),
		st.CapacityPerSlot,
		st.MinNoticeHours,
		st.MaxDaysAhead,
		st.AssignMode.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanServiceType(row pgx.Row) (*model.ServiceType, error) {
	var st model.ServiceType
	var durationMin, bufBeforeMin, bufAfterMin int
	var mode string
	err := row.Scan(
		&st.ID,
		&st.Name,
		&durationMin,
		&bufBeforeMin,
		&bufAfterMin,
		&st.CapacityPerSlot,
		&st.MinNoticeHours,
		&st.MaxDaysAhead,
		&mode,
		&st.Active,
	)
	if err != nil {
		return nil, err
	}
	st.Duration = time.Duration(durationMin) * time.Minute
	st.BufferBefore = time.Duration(bufBeforeMin) * time.Minute
	st.BufferAfter = time.Duration(bufAfterMin) * time.Minute
	st.AssignMode, err = model.ParseAssignMode(mode)
	if err != nil {
		return nil, fmt.Errorf("service type %s: %w", st.ID, err)
	}
	return &st, nil
}
