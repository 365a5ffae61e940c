package engine

import (
	"context"
	"errors"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// The engine never owns the booking ledger or scheduling configuration; it
// consumes them through these collaborator interfaces. Production wires the
// pgx repositories from internal/storage, tests wire in-memory fakes.

// BookingSource reads the booking ledger. FindBookings is the engine's one
// bulk load per request; LatestBooking and CountsByStaff back the assignment
// strategies.
type BookingSource interface {
	FindBookings(ctx context.Context, staffIDs []string, intervalStart, intervalEnd time.Time, excludeStatuses []model.BookingStatus) ([]model.Booking, error)
	LatestBooking(ctx context.Context, serviceTypeID string, staffIDs []string) (*model.Booking, error)
	CountsByStaff(ctx context.Context, staffIDs []string, start, end time.Time) (map[string]int, error)
}

// RuleSource reads availability rules.
type RuleSource interface {
	FindRules(ctx context.Context, serviceTypeID string, activeOnly bool) ([]model.AvailabilityRule, error)
}

// StaffSource reads staff records. FindEligibleStaff must return a stable,
// deterministic order; the engine preserves it.
type StaffSource interface {
	FindEligibleStaff(ctx context.Context, serviceTypeID string, activeOnly bool) ([]model.StaffMember, error)
}

// ServiceTypeSource reads service type configuration.
type ServiceTypeSource interface {
	GetServiceType(ctx context.Context, id string) (*model.ServiceType, error)
}

var (
	// ErrUnknownServiceType is a caller error: slot generation was requested
	// for a service type that does not exist.
	ErrUnknownServiceType = errors.New("unknown service type")

	// ErrUnknownTimezone is a caller error: the requested display timezone
	// is not a valid IANA zone name.
	ErrUnknownTimezone = errors.New("unknown timezone")
)
