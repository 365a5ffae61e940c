// Package assign picks the staff member(s) who fulfill a slot request when
// the caller has not pinned one.
package assign

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// LedgerReader is the slice of the booking ledger the strategies need:
// round robin anchors on the most recently created booking, load balancing
// counts each staff member's bookings on the candidate's day.
type LedgerReader interface {
	LatestBooking(ctx context.Context, serviceTypeID string, staffIDs []string) (*model.Booking, error)
	CountsByStaff(ctx context.Context, staffIDs []string, start, end time.Time) (map[string]int, error)
}

// Assignment is the outcome of a staff assignment. An empty StaffIDs slice
// means no assignment was possible (empty eligible set); that is a valid
// result, not an error.
type Assignment struct {
	StaffIDs []string `json:"staff_ids"`
}

// Empty reports whether no staff member could be assigned.
func (a Assignment) Empty() bool { return len(a.StaffIDs) == 0 }

// Assigner implements the closed set of assignment strategies.
type Assigner struct {
	ledger LedgerReader
	intN   func(n int) int
}

// Option configures an Assigner.
type Option func(*Assigner)

// WithIntN overrides the random source. Tests use this for determinism.
func WithIntN(intN func(n int) int) Option {
	return func(a *Assigner) { a.intN = intN }
}

func New(ledger LedgerReader, opts ...Option) *Assigner {
	a := &Assigner{ledger: ledger, intN: rand.IntN}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assign chooses staff for the candidate window according to mode. eligible
// must already be filtered to active staff able to serve the service type,
// in a stable, deterministic order.
func (a *Assigner) Assign(ctx context.Context, serviceType *model.ServiceType, candidateStart, candidateEnd time.Time, mode model.AssignMode, eligible []model.StaffMember) (Assignment, error) {
	if len(eligible) == 0 {
		return Assignment{}, nil
	}

	switch mode {
	case model.AssignRoundRobin:
		return a.roundRobin(ctx, serviceType, eligible)
	case model.AssignLoadBalanced:
		return a.leastLoaded(ctx, candidateStart, eligible)
	case model.AssignCustomerChoice:
		ids := make([]string, 0, len(eligible))
		for _, m := range eligible {
			ids = append(ids, m.ID)
		}
		return Assignment{StaffIDs: ids}, nil
	case model.AssignRandom:
		return Assignment{StaffIDs: []string{eligible[a.intN(len(eligible))].ID}}, nil
	default:
		// Manual: the caller decides out of band; hand back the first
		// eligible member as the placeholder default.
		return Assignment{StaffIDs: []string{eligible[0].ID}}, nil
	}
}

// roundRobin finds the most recently created booking among the eligible
// staff for this service type and picks the next member cyclically. With no
// prior booking, the first eligible member wins.
func (a *Assigner) roundRobin(ctx context.Context, serviceType *model.ServiceType, eligible []model.StaffMember) (Assignment, error) {
	ids := make([]string, 0, len(eligible))
	for _, m := range eligible {
		ids = append(ids, m.ID)
	}

	last, err := a.ledger.LatestBooking(ctx, serviceType.ID, ids)
	if err != nil {
		return Assignment{}, err
	}
	if last == nil {
		return Assignment{StaffIDs: []string{eligible[0].ID}}, nil
	}

	for i, m := range eligible {
		if m.ID == last.StaffID {
			next := eligible[(i+1)%len(eligible)]
			return Assignment{StaffIDs: []string{next.ID}}, nil
		}
	}
	// Last booking belongs to someone no longer eligible; restart the cycle.
	return Assignment{StaffIDs: []string{eligible[0].ID}}, nil
}

// leastLoaded counts each eligible member's bookings starting on the
// candidate's UTC day and picks the minimum, first-listed winning ties.
func (a *Assigner) leastLoaded(ctx context.Context, candidateStart time.Time, eligible []model.StaffMember) (Assignment, error) {
	day := candidateStart.UTC()
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	ids := make([]string, 0, len(eligible))
	for _, m := range eligible {
		ids = append(ids, m.ID)
	}

	counts, err := a.ledger.CountsByStaff(ctx, ids, dayStart, dayEnd)
	if err != nil {
		return Assignment{}, err
	}

	best := eligible[0]
	bestCount := counts[best.ID]
	for _, m := range eligible[1:] {
		if c := counts[m.ID]; c < bestCount {
			best = m
			bestCount = c
		}
	}
	return Assignment{StaffIDs: []string{best.ID}}, nil
}
