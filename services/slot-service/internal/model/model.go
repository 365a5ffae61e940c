package model

import "time"

// BookingStatus is the lifecycle state of a booking. Only non-cancelled,
// non-no-show bookings count toward slot capacity.
type BookingStatus string

const (
	StatusTentative BookingStatus = "tentative"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no_show"
	StatusDone      BookingStatus = "done"
)

// CapacityExcludedStatuses are the statuses that never occupy a slot.
var CapacityExcludedStatuses = []BookingStatus{StatusCancelled, StatusNoShow}

// CountsTowardCapacity reports whether a booking in this status occupies
// capacity in the slots it overlaps.
func (s BookingStatus) CountsTowardCapacity() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Valid reports whether s is one of the known statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusTentative, StatusConfirmed, StatusCancelled, StatusNoShow, StatusDone:
		return true
	}
	return false
}

// ServiceType carries the scheduling parameters for one bookable service.
// It is treated as immutable during a single slot computation.
type ServiceType struct {
	ID              string
	Name            string
	Duration        time.Duration // default slot length
	BufferBefore    time.Duration
	BufferAfter     time.Duration
	CapacityPerSlot int
	MinNoticeHours  int
	MaxDaysAhead    int
	AssignMode      AssignMode
	Active          bool
}

// AvailabilityRule grants a weekly time window during which slots for a
// service type may be generated. StaffID empty means the rule applies to all
// staff eligible for the service type.
//
// Weekday uses 0=Monday .. 6=Sunday, matching how the rules are authored.
// HourFrom/HourTo are fractional hours of day in the rule's own timezone,
// e.g. 9.5 = 09:30. The window is [HourFrom, HourTo).
type AvailabilityRule struct {
	ID             string
	ServiceTypeID  string
	StaffID        string
	Weekday        int
	HourFrom       float64
	HourTo         float64
	Timezone       string
	DateFrom       *time.Time // date-only bounds; nil = unbounded
	DateTo         *time.Time
	ExclusionDates string // comma-separated YYYY-MM-DD, tolerant of junk
	Sequence       int
	Active         bool
}

// RuleWeekday converts a calendar date to the rule weekday convention
// (0=Monday .. 6=Sunday).
func RuleWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Booking is one entry in the booking ledger. Start/End are stored in UTC.
type Booking struct {
	ID            string
	StaffID       string
	ServiceTypeID string
	Start         time.Time
	End           time.Time
	Status        BookingStatus
	CreatedAt     time.Time
}

// StaffMember is a bookable person. Only active staff participate in slot
// generation.
type StaffMember struct {
	ID             string
	Name           string
	Active         bool
	ServiceTypeIDs []string
}

// EligibleFor reports whether the staff member can serve the service type.
func (m StaffMember) EligibleFor(serviceTypeID string) bool {
	for _, id := range m.ServiceTypeIDs {
		if id == serviceTypeID {
			return true
		}
	}
	return false
}

// Slot is a derived, never-persisted candidate booking interval for one staff
// member. Start/End are UTC; StartDisplay/EndDisplay are the same instants
// rendered in the caller's requested timezone.
type Slot struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	StartDisplay string    `json:"start_display"`
	EndDisplay   string    `json:"end_display"`
	StaffID      string    `json:"staff_id"`
	StaffName    string    `json:"staff_name,omitempty"`
	Capacity     int       `json:"capacity"`
	BookedCount  int       `json:"booked_count"`
	Available    bool      `json:"available"`
}
