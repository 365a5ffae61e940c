package assign

import (
	"context"
	"testing"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

type fakeLedger struct {
	latest *model.Booking
	counts map[string]int

	latestCalls int
	countCalls  int
}

func (f *fakeLedger) LatestBooking(_ context.Context, _ string, _ []string) (*model.Booking, error) {
	f.latestCalls++
	return f.latest, nil
}

func (f *fakeLedger) CountsByStaff(_ context.Context, _ []string, _, _ time.Time) (map[string]int, error) {
	f.countCalls++
	return f.counts, nil
}

var (
	serviceType = &model.ServiceType{ID: "st1"}
	staffABC    = []model.StaffMember{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	slotStart   = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	slotEnd     = slotStart.Add(30 * time.Minute)
)

func TestAssign_EmptyEligibleSet(t *testing.T) {
	a := New(&fakeLedger{})
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignRoundRobin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Empty() {
		t.Fatalf("expected empty assignment, got %+v", got)
	}
}

func TestRoundRobin_NoPriorBooking(t *testing.T) {
	a := New(&fakeLedger{})
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignRoundRobin, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StaffIDs) != 1 || got.StaffIDs[0] != "a" {
		t.Fatalf("expected first member, got %+v", got)
	}
}

func TestRoundRobin_CyclesThroughStaff(t *testing.T) {
	cases := []struct {
		lastStaff string
		want      string
	}{
		{"a", "b"},
		{"b", "c"},
		{"c", "a"},
	}
	for _, tc := range cases {
		ledger := &fakeLedger{latest: &model.Booking{StaffID: tc.lastStaff}}
		a := New(ledger)
		got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignRoundRobin, staffABC)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.StaffIDs[0] != tc.want {
			t.Fatalf("after %s expected %s, got %s", tc.lastStaff, tc.want, got.StaffIDs[0])
		}
	}
}

func TestRoundRobin_AnchorNoLongerEligible(t *testing.T) {
	ledger := &fakeLedger{latest: &model.Booking{StaffID: "departed"}}
	a := New(ledger)
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignRoundRobin, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffIDs[0] != "a" {
		t.Fatalf("cycle must restart at first member, got %s", got.StaffIDs[0])
	}
}

func TestLeastLoaded_PicksMinimum(t *testing.T) {
	ledger := &fakeLedger{counts: map[string]int{"a": 3, "b": 1, "c": 2}}
	a := New(ledger)
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignLoadBalanced, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffIDs[0] != "b" {
		t.Fatalf("expected least loaded b, got %s", got.StaffIDs[0])
	}
}

func TestLeastLoaded_FirstWinsTies(t *testing.T) {
	// Staff with no bookings are absent from the counts map and count as 0.
	ledger := &fakeLedger{counts: map[string]int{"a": 2}}
	a := New(ledger)
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignLoadBalanced, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffIDs[0] != "b" {
		t.Fatalf("tie between b and c must go to b, got %s", got.StaffIDs[0])
	}
}

func TestCustomerChoice_ReturnsAllEligible(t *testing.T) {
	a := New(&fakeLedger{})
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignCustomerChoice, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StaffIDs) != 3 {
		t.Fatalf("expected all eligible staff, got %+v", got)
	}
	for i, want := range []string{"a", "b", "c"} {
		if got.StaffIDs[i] != want {
			t.Fatalf("position %d: got %s, want %s", i, got.StaffIDs[i], want)
		}
	}
}

func TestRandom_UsesInjectedSource(t *testing.T) {
	a := New(&fakeLedger{}, WithIntN(func(n int) int { return n - 1 }))
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignRandom, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffIDs[0] != "c" {
		t.Fatalf("expected c from injected source, got %s", got.StaffIDs[0])
	}
}

func TestManual_DefaultsToFirstEligible(t *testing.T) {
	ledger := &fakeLedger{}
	a := New(ledger)
	got, err := a.Assign(context.Background(), serviceType, slotStart, slotEnd, model.AssignManual, staffABC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StaffIDs[0] != "a" {
		t.Fatalf("expected first member, got %s", got.StaffIDs[0])
	}
	if ledger.latestCalls != 0 || ledger.countCalls != 0 {
		t.Fatal("manual mode must not touch the ledger")
	}
}
