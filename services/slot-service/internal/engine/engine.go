package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
	"github.com/clinicware/slotengine/services/slot-service/internal/overlap"
	"github.com/clinicware/slotengine/services/slot-service/internal/rules"
	"github.com/clinicware/slotengine/services/slot-service/internal/timegrid"
)

// ledgerPad widens the bulk booking load around the requested date range so
// that rule timezones and capacity buffers cannot push a relevant booking
// outside the loaded interval.
const ledgerPad = 48 * time.Hour

// Request describes one slot generation. From and To are inclusive calendar
// dates; only their year, month and day are used. Timezone is the display
// timezone for slot rendering. StaffID, when set, restricts generation to
// that one staff member.
type Request struct {
	ServiceTypeID string
	From          time.Time
	To            time.Time
	Timezone      string
	StaffID       string
}

// Engine turns availability rules and the booking ledger into concrete slots.
// It is stateless and safe for concurrent use.
type Engine struct {
	serviceTypes ServiceTypeSource
	rules        RuleSource
	staff        StaffSource
	bookings     BookingSource
}

func New(serviceTypes ServiceTypeSource, ruleSource RuleSource, staff StaffSource, bookings BookingSource) *Engine {
	return &Engine{
		serviceTypes: serviceTypes,
		rules:        ruleSource,
		staff:        staff,
		bookings:     bookings,
	}
}

// Generate computes all slots for the request. It performs exactly one bulk
// booking load for the whole date range and staff set; everything after that
// is in-memory. The result is deterministic for identical inputs and ledger
// state: days ascending, then rule order, then staff order, then start time.
func (e *Engine) Generate(ctx context.Context, req Request) ([]model.Slot, error) {
	serviceType, err := e.serviceTypes.GetServiceType(ctx, req.ServiceTypeID)
	if err != nil {
		return nil, fmt.Errorf("load service type: %w", err)
	}
	if serviceType == nil || !serviceType.Active {
		return nil, ErrUnknownServiceType
	}

	displayLoc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, req.Timezone)
	}

	staffSet, err := e.resolveStaff(ctx, req)
	if err != nil {
		return nil, err
	}
	ruleSet, err := e.rules.FindRules(ctx, req.ServiceTypeID, true)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	if len(staffSet) == 0 || len(ruleSet) == 0 {
		return []model.Slot{}, nil
	}

	byStaff, err := e.loadLedger(ctx, req, staffSet)
	if err != nil {
		return nil, err
	}

	staffName := make(map[string]string, len(staffSet))
	for _, m := range staffSet {
		staffName[m.ID] = m.Name
	}

	slots := []model.Slot{}
	for day := dateOnly(req.From); !day.After(dateOnly(req.To)); day = day.AddDate(0, 0, 1) {
		for _, rule := range rules.Active(ruleSet, day) {
			for _, m := range ruleStaff(rule, staffSet) {
				candidates, err := timegrid.Candidates(rule, day, serviceType.Duration)
				if err != nil {
					return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
				}
				for _, c := range candidates {
					startUTC, endUTC := c.StartUTC(), c.EndUTC()
					available, booked := overlap.Evaluate(startUTC, endUTC, serviceType, byStaff[m.ID])
					slots = append(slots, model.Slot{
						Start:        startUTC,
						End:          endUTC,
						StartDisplay: startUTC.In(displayLoc).Format(time.RFC3339),
						EndDisplay:   endUTC.In(displayLoc).Format(time.RFC3339),
						StaffID:      m.ID,
						StaffName:    staffName[m.ID],
						Capacity:     serviceType.CapacityPerSlot,
						BookedCount:  booked,
						Available:    available,
					})
				}
			}
		}
	}
	return slots, nil
}

// resolveStaff returns the staff members slots may be generated for, in the
// source's stable order. A pinned staff id narrows the eligible set; a pin
// that is not eligible yields an empty set rather than an error.
func (e *Engine) resolveStaff(ctx context.Context, req Request) ([]model.StaffMember, error) {
	eligible, err := e.staff.FindEligibleStaff(ctx, req.ServiceTypeID, true)
	if err != nil {
		return nil, fmt.Errorf("load staff: %w", err)
	}
	if req.StaffID == "" {
		return eligible, nil
	}
	for _, m := range eligible {
		if m.ID == req.StaffID {
			return []model.StaffMember{m}, nil
		}
	}
	return nil, nil
}

// loadLedger is the single bulk booking read for a generation request. The
// result is partitioned by staff id so the per-slot overlap checks never
// touch the source again.
func (e *Engine) loadLedger(ctx context.Context, req Request, staffSet []model.StaffMember) (map[string][]model.Booking, error) {
	ids := make([]string, len(staffSet))
	for i, m := range staffSet {
		ids[i] = m.ID
	}
	intervalStart := dateOnly(req.From).Add(-ledgerPad)
	intervalEnd := dateOnly(req.To).AddDate(0, 0, 1).Add(ledgerPad)
	bookings, err := e.bookings.FindBookings(ctx, ids, intervalStart, intervalEnd, model.CapacityExcludedStatuses)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	byStaff := make(map[string][]model.Booking, len(ids))
	for _, b := range bookings {
		byStaff[b.StaffID] = append(byStaff[b.StaffID], b)
	}
	return byStaff, nil
}

// ruleStaff intersects a rule's staff scope with the resolved staff set. A
// rule pinned to a staff member outside the set produces nothing.
func ruleStaff(rule model.AvailabilityRule, staffSet []model.StaffMember) []model.StaffMember {
	if rule.StaffID == "" {
		return staffSet
	}
	for _, m := range staffSet {
		if m.ID == rule.StaffID {
			return []model.StaffMember{m}
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
