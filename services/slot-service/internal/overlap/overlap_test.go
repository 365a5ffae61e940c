package overlap

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func booking(start, end time.Time, status model.BookingStatus) model.Booking {
	return model.Booking{ID: "b", StaffID: "s1", Start: start, End: end, Status: status}
}

func TestOccupies_EdgeSemantics(t *testing.T) {
	ws := base
	we := base.Add(30 * time.Minute)

	cases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  bool
	}{
		{"inside", ws.Add(5 * time.Minute), ws.Add(25 * time.Minute), true},
		{"starts at window start", ws, ws.Add(10 * time.Minute), true},
		{"ends at window end", ws.Add(20 * time.Minute), we, true},
		{"spans the window", ws.Add(-time.Hour), we.Add(time.Hour), true},
		{"ends exactly at window start", ws.Add(-time.Hour), ws, false},
		{"starts exactly at window end", we, we.Add(time.Hour), false},
		{"entirely before", ws.Add(-2 * time.Hour), ws.Add(-time.Hour), false},
		{"entirely after", we.Add(time.Hour), we.Add(2 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Occupies(booking(tc.start, tc.end, model.StatusConfirmed), ws, we)
			if got != tc.want {
				t.Fatalf("Occupies = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_Buffers(t *testing.T) {
	serviceType := &model.ServiceType{
		CapacityPerSlot: 1,
		BufferBefore:    15 * time.Minute,
		BufferAfter:     15 * time.Minute,
	}

	// Booking ends 10 minutes before the raw window but inside the buffer.
	b := booking(base.Add(-time.Hour), base.Add(-10*time.Minute), model.StatusConfirmed)
	available, count := Evaluate(base, base.Add(30*time.Minute), serviceType, []model.Booking{b})
	if available || count != 1 {
		t.Fatalf("buffered window must be occupied: available=%v count=%d", available, count)
	}

	// Without buffers the same booking does not touch the window.
	serviceType.BufferBefore, serviceType.BufferAfter = 0, 0
	available, count = Evaluate(base, base.Add(30*time.Minute), serviceType, []model.Booking{b})
	if !available || count != 0 {
		t.Fatalf("unbuffered window must be free: available=%v count=%d", available, count)
	}
}

func TestEvaluate_StatusFiltering(t *testing.T) {
	serviceType := &model.ServiceType{CapacityPerSlot: 1}
	window := []model.Booking{
		booking(base, base.Add(30*time.Minute), model.StatusCancelled),
		booking(base, base.Add(30*time.Minute), model.StatusNoShow),
	}
	available, count := Evaluate(base, base.Add(30*time.Minute), serviceType, window)
	if !available || count != 0 {
		t.Fatalf("cancelled and no-show must not count: available=%v count=%d", available, count)
	}

	window = append(window, booking(base, base.Add(30*time.Minute), model.StatusTentative))
	available, count = Evaluate(base, base.Add(30*time.Minute), serviceType, window)
	if available || count != 1 {
		t.Fatalf("tentative must count: available=%v count=%d", available, count)
	}
}

func TestEvaluate_Capacity(t *testing.T) {
	serviceType := &model.ServiceType{CapacityPerSlot: 2}
	one := []model.Booking{booking(base, base.Add(30*time.Minute), model.StatusConfirmed)}
	two := append(one, booking(base.Add(5*time.Minute), base.Add(20*time.Minute), model.StatusDone))

	if available, count := Evaluate(base, base.Add(30*time.Minute), serviceType, one); !available || count != 1 {
		t.Fatalf("capacity 2 with 1 booking must be available: available=%v count=%d", available, count)
	}
	if available, count := Evaluate(base, base.Add(30*time.Minute), serviceType, two); available || count != 2 {
		t.Fatalf("capacity 2 with 2 bookings must be full: available=%v count=%d", available, count)
	}
}

// bruteOccupies checks interval intersection of half-open intervals directly.
// The three-way test must agree with it for bookings of positive length.
func bruteOccupies(b model.Booking, ws, we time.Time) bool {
	return b.Start.Before(we) && b.End.After(ws)
}

func TestOccupies_AgreesWithIntervalIntersection(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 13))
	ws := base
	we := base.Add(45 * time.Minute)

	for i := 0; i < 2000; i++ {
		startOff := time.Duration(rng.IntN(240)-120) * time.Minute
		length := time.Duration(1+rng.IntN(180)) * time.Minute
		b := booking(base.Add(startOff), base.Add(startOff).Add(length), model.StatusConfirmed)

		got := Occupies(b, ws, we)
		want := bruteOccupies(b, ws, we)
		if got != want {
			t.Fatalf("booking [%s, %s): Occupies=%v, intersection=%v",
				b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339), got, want)
		}
	}
}
