package storage

import (
	"context"

	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

// FindEligibleStaff returns staff linked to the service type in a stable
// order. The engine and assignment strategies rely on that order for
// deterministic output.
func (r *StaffRepository) FindEligibleStaff(ctx context.Context, serviceTypeID string, activeOnly bool) ([]model.StaffMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id::text, s.name, s.active
		FROM staff s
		JOIN staff_service_types sst ON sst.staff_id = s.id
		WHERE sst.service_type_id = $1
			AND ($2 = false OR s.active)
		ORDER BY s.created_at ASC, s.id ASC
	`, serviceTypeID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.StaffMember
	for rows.Next() {
		var m model.StaffMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Active); err != nil {
			return nil, err
		}
		m.ServiceTypeIDs = []string{serviceTypeID}
		members = append(members, m)
	}
	return members, rows.Err()
}
