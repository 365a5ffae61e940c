package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/clinicware/slotengine/libs/db"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type RuleRepository struct {
	pool *db.Pool
}

func NewRuleRepository(pool *db.Pool) *RuleRepository {
	return &RuleRepository{pool: pool}
}

const ruleColumns = `id::text, service_type_id::text, COALESCE(staff_id::text, ''), weekday,
	hour_from, hour_to, timezone, date_from, date_to, COALESCE(exclusion_dates, ''), sequence, active`

func (r *RuleRepository) FindRules(ctx context.Context, serviceTypeID string, activeOnly bool) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE service_type_id = $1
			AND ($2 = false OR active)
		ORDER BY sequence ASC, id ASC
	`, serviceTypeID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ruleSet []model.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, rows.Err()
}

func (r *RuleRepository) Get(ctx context.Context, id string) (model.AvailabilityRule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

func (r *RuleRepository) Create(ctx context.Context, tx pgx.Tx, rule *model.AvailabilityRule) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO availability_rules
			(service_type_id, staff_id, weekday, hour_from, hour_to, timezone,
			date_from, date_to, exclusion_dates, sequence, active)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, rule.ServiceTypeID, rule.StaffID, rule.Weekday, rule.HourFrom, rule.HourTo, rule.Timezone,
		rule.DateFrom, rule.DateTo, rule.ExclusionDates, rule.Sequence, rule.Active).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *RuleRepository) Update(ctx context.Context, tx pgx.Tx, rule *model.AvailabilityRule) error {
	tag, err := tx.Exec(ctx, `
		UPDATE availability_rules
		SET staff_id = NULLIF($2, '')::uuid,
			weekday = $3,
			hour_from = $4,
			hour_to = $5,
			timezone = $6,
			date_from = $7,
			date_to = $8,
			exclusion_dates = $9,
			sequence = $10,
			active = $11,
			updated_at = now()
		WHERE id = $1
	`, rule.ID, rule.StaffID, rule.Weekday, rule.HourFrom, rule.HourTo, rule.Timezone,
		rule.DateFrom, rule.DateTo, rule.ExclusionDates, rule.Sequence, rule.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *RuleRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM availability_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRule(row pgx.Row) (model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	err := row.Scan(
		&rule.ID,
		&rule.ServiceTypeID,
		&rule.StaffID,
		&rule.Weekday,
		&rule.HourFrom,
		&rule.HourTo,
		&rule.Timezone,
		&rule.DateFrom,
		&rule.DateTo,
		&rule.ExclusionDates,
		&rule.Sequence,
		&rule.Active,
	)
	if err != nil {
		return model.AvailabilityRule{}, err
	}
	return rule, nil
}
