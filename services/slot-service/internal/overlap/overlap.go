// Package overlap decides whether a candidate slot is free for a staff
// member given their already-loaded bookings. It never touches the ledger:
// the engine performs a single bulk load per request and hands each staff
// member's bookings in, keeping ledger lookups proportional to staff count
// rather than slot count.
package overlap

import (
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// Evaluate reports whether the candidate window [startUTC, endUTC), expanded
// by the service type's buffers, still has capacity, together with the number
// of bookings occupying it.
//
// A booking occupies the expanded window [ws, we) iff
//
//	booking.Start ∈ [ws, we)  or
//	booking.End   ∈ (ws, we]  or
//	the booking fully spans the window.
//
// The edge semantics (start-inclusive/end-exclusive on starts, the mirror on
// ends) are deliberate and load-bearing: a booking ending exactly at ws or
// starting exactly at we does not occupy the window.
func Evaluate(startUTC, endUTC time.Time, serviceType *model.ServiceType, bookings []model.Booking) (available bool, bookedCount int) {
	ws := startUTC.Add(-serviceType.BufferBefore)
	we := endUTC.Add(serviceType.BufferAfter)

	for _, b := range bookings {
		if !b.Status.CountsTowardCapacity() {
			continue
		}
		if Occupies(b, ws, we) {
			bookedCount++
		}
	}
	return bookedCount < serviceType.CapacityPerSlot, bookedCount
}

// Occupies applies the three-way overlap test against the already-expanded
// window [ws, we).
func Occupies(b model.Booking, ws, we time.Time) bool {
	startsInside := !b.Start.Before(ws) && b.Start.Before(we)
	endsInside := b.End.After(ws) && !b.End.After(we)
	spans := b.Start.Before(ws) && b.End.After(we)
	return startsInside || endsInside || spans
}
