package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/assign"
	"github.com/clinicware/slotengine/services/slot-service/internal/engine"
	"github.com/clinicware/slotengine/services/slot-service/internal/metrics"
	"github.com/clinicware/slotengine/services/slot-service/internal/model"
	"github.com/clinicware/slotengine/services/slot-service/internal/slotcache"
)

type fakeSources struct {
	serviceTypes map[string]*model.ServiceType
	ruleSet      []model.AvailabilityRule
	staff        []model.StaffMember
	bookings     []model.Booking
}

func (f *fakeSources) GetServiceType(_ context.Context, id string) (*model.ServiceType, error) {
	return f.serviceTypes[id], nil
}

func (f *fakeSources) FindRules(_ context.Context, serviceTypeID string, _ bool) ([]model.AvailabilityRule, error) {
	var out []model.AvailabilityRule
	for _, r := range f.ruleSet {
		if r.ServiceTypeID == serviceTypeID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSources) FindEligibleStaff(_ context.Context, serviceTypeID string, _ bool) ([]model.StaffMember, error) {
	var out []model.StaffMember
	for _, m := range f.staff {
		if m.EligibleFor(serviceTypeID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeSources) FindBookings(context.Context, []string, time.Time, time.Time, []model.BookingStatus) ([]model.Booking, error) {
	return f.bookings, nil
}

func (f *fakeSources) LatestBooking(context.Context, string, []string) (*model.Booking, error) {
	return nil, nil
}

func (f *fakeSources) CountsByStaff(context.Context, []string, time.Time, time.Time) (map[string]int, error) {
	return nil, nil
}

func newTestHandler() *SlotHandler {
	src := &fakeSources{
		serviceTypes: map[string]*model.ServiceType{
			"st1": {
				ID: "st1", Name: "Consultation",
				Duration: 30 * time.Minute, CapacityPerSlot: 1,
				MaxDaysAhead: 30, Active: true,
				AssignMode: model.AssignRoundRobin,
			},
		},
		ruleSet: []model.AvailabilityRule{
			{ID: "r1", ServiceTypeID: "st1", Weekday: 0, HourFrom: 9, HourTo: 10, Timezone: "UTC", Active: true},
		},
		staff: []model.StaffMember{
			{ID: "alice", Name: "Alice", Active: true, ServiceTypeIDs: []string{"st1"}},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewRecorder(metrics.NewMemoryStore(), nil, logger)
	svc := engine.NewService(engine.New(src, src, src, src), slotcache.NewMemory(), recorder, assign.New(src), logger)
	return NewSlotHandler(svc, logger)
}

func TestSlots_OK(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?service_type_id=st1&from=2026-03-02&to=2026-03-02", nil)
	rec := httptest.NewRecorder()

	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var slots []model.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].StaffID != "alice" || !slots[0].Available {
		t.Fatalf("unexpected first slot: %+v", slots[0])
	}
}

func TestSlots_Validation(t *testing.T) {
	h := newTestHandler()
	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"missing service type", "from=2026-03-02&to=2026-03-02", http.StatusBadRequest},
		{"missing dates", "service_type_id=st1", http.StatusBadRequest},
		{"bad from", "service_type_id=st1&from=tomorrow&to=2026-03-02", http.StatusBadRequest},
		{"to before from", "service_type_id=st1&from=2026-03-09&to=2026-03-02", http.StatusBadRequest},
		{"range too large", "service_type_id=st1&from=2026-01-01&to=2026-12-31", http.StatusBadRequest},
		{"bad timezone", "service_type_id=st1&from=2026-03-02&to=2026-03-02&timezone=Mars%2FOlympus", http.StatusBadRequest},
		{"unknown service type", "service_type_id=nope&from=2026-03-02&to=2026-03-02", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.Slots(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSlots_MethodNotAllowed(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestNext_OK(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots/next?service_type_id=st1", nil)
	rec := httptest.NewRecorder()

	h.Next(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp nextSlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Slot == nil {
		t.Fatal("expected a slot")
	}
	if resp.Slot.StaffID != "alice" || !resp.Slot.Available {
		t.Fatalf("unexpected slot: %+v", resp.Slot)
	}
}

func TestAssign_OK(t *testing.T) {
	h := newTestHandler()
	body := `{"service_type_id":"st1","start":"2026-03-02T09:00:00Z","end":"2026-03-02T09:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/assign", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.Assign(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp assignResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.StaffIDs) != 1 || resp.StaffIDs[0] != "alice" {
		t.Fatalf("unexpected assignment: %+v", resp)
	}
}

func TestAssign_Validation(t *testing.T) {
	h := newTestHandler()
	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing service type", `{"start":"2026-03-02T09:00:00Z","end":"2026-03-02T09:30:00Z"}`, http.StatusBadRequest},
		{"end before start", `{"service_type_id":"st1","start":"2026-03-02T09:30:00Z","end":"2026-03-02T09:00:00Z"}`, http.StatusBadRequest},
		{"unknown mode", `{"service_type_id":"st1","start":"2026-03-02T09:00:00Z","end":"2026-03-02T09:30:00Z","mode":"fifo"}`, http.StatusBadRequest},
		{"unknown service type", `{"service_type_id":"nope","start":"2026-03-02T09:00:00Z","end":"2026-03-02T09:30:00Z"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/slots/assign", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Assign(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
