package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/assign"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
	"github.com/clinicware/slotengine/services/slot-service/internal/slotcache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(src *fakeSources, store *metrics.MemoryStore) *Service {
	recorder := metrics.NewRecorder(store, nil, discardLogger())
	return NewService(newEngine(src), slotcache.NewMemory(), recorder, assign.New(src), discardLogger())
}

func TestSlots_CacheHitSkipsEngine(t *testing.T) {
	src := newFakeSources()
	store := metrics.NewMemoryStore()
	svc := newService(src, store)

	req := Request{ServiceTypeID: "st1", From: monday, To: monday, Timezone: "UTC"}
	first, err := svc.Slots(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Slots(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 slots on both calls, got %d and %d", len(first), len(second))
	}
	if src.findBookingsCalls != 1 {
		t.Fatalf("second call must be served from cache, ledger loads: %d", src.findBookingsCalls)
	}
}

func TestSlots_RecordsMetrics(t *testing.T) {
	src := newFakeSources()
	store := metrics.NewMemoryStore()
	svc := newService(src, store)

	req := Request{ServiceTypeID: "st1", From: monday, To: monday, Timezone: "UTC"}
	if _, err := svc.Slots(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Slots(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc.recorder.Drain()

	rows, err := store.ListRequestsSince(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 recorded requests, got %d", len(rows))
	}
	if rows[0].CacheHit == rows[1].CacheHit {
		t.Fatalf("expected one miss and one hit, got %v and %v", rows[0].CacheHit, rows[1].CacheHit)
	}
	for _, row := range rows {
		if row.SlotsReturned != 2 || row.ServiceTypeID != "st1" {
			t.Fatalf("bad recorded row: %+v", row)
		}
	}
}

func TestInvalidate_ForcesRecompute(t *testing.T) {
	src := newFakeSources()
	svc := newService(src, metrics.NewMemoryStore())

	req := Request{ServiceTypeID: "st1", From: monday, To: monday, Timezone: "UTC"}
	if _, err := svc.Slots(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Invalidate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Slots(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.findBookingsCalls != 2 {
		t.Fatalf("invalidation must force a recompute, ledger loads: %d", src.findBookingsCalls)
	}
}

func TestNextAvailableSlot_HonorsNoticeAndHorizon(t *testing.T) {
	src := newFakeSources()
	src.serviceTypes["st1"].MinNoticeHours = 2
	svc := newService(src, metrics.NewMemoryStore())
	// Monday 08:00: the 09:00 and 09:30 slots fall inside the 2h notice.
	svc.now = func() time.Time { return monday.Add(8 * time.Hour) }

	slot, err := svc.NextAvailableSlot(context.Background(), "st1", "UTC", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot == nil {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(monday.Add(9*time.Hour + 30*time.Minute)) {
		t.Fatalf("expected the 09:30 slot, got %s", slot.Start)
	}
}

func TestNextAvailableSlot_SkipsToNextWeek(t *testing.T) {
	src := newFakeSources()
	svc := newService(src, metrics.NewMemoryStore())
	// Monday 11:00: the day's window is over, next Monday is the answer.
	svc.now = func() time.Time { return monday.Add(11 * time.Hour) }

	slot, err := svc.NextAvailableSlot(context.Background(), "st1", "UTC", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot == nil {
		t.Fatal("expected a slot")
	}
	if !slot.Start.Equal(monday.AddDate(0, 0, 7).Add(9 * time.Hour)) {
		t.Fatalf("expected next Monday 09:00, got %s", slot.Start)
	}
}

func TestNextAvailableSlot_BookedOutHorizon(t *testing.T) {
	src := newFakeSources()
	src.serviceTypes["st1"].MaxDaysAhead = 5
	src.ruleSet = nil
	svc := newService(src, metrics.NewMemoryStore())
	svc.now = func() time.Time { return monday }

	slot, err := svc.NextAvailableSlot(context.Background(), "st1", "UTC", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot != nil {
		t.Fatalf("no rules inside the horizon must yield nil, got %+v", slot)
	}
}

func TestAssignStaff_UsesServiceTypeMode(t *testing.T) {
	src := newFakeSources()
	src.serviceTypes["st1"].AssignMode = model.AssignCustomerChoice
	src.staff = append(src.staff, model.StaffMember{
		ID: "bob", Name: "Bob", Active: true, ServiceTypeIDs: []string{"st1"},
	})
	svc := newService(src, metrics.NewMemoryStore())

	got, err := svc.AssignStaff(context.Background(), "st1", monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StaffIDs) != 2 {
		t.Fatalf("customer choice must return all eligible, got %+v", got)
	}

	override := model.AssignRoundRobin
	got, err = svc.AssignStaff(context.Background(), "st1", monday.Add(9*time.Hour), monday.Add(9*time.Hour+30*time.Minute), &override)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.StaffIDs) != 1 || got.StaffIDs[0] != "alice" {
		t.Fatalf("override to round robin must pick alice, got %+v", got)
	}
}
