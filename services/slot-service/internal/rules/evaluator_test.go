package rules

import (
	"testing"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActive_WeekdayMatch(t *testing.T) {
	ruleSet := []model.AvailabilityRule{
		{ID: "mon", Weekday: 0, Active: true},
		{ID: "tue", Weekday: 1, Active: true},
	}

	// 2026-03-02 is a Monday.
	got := Active(ruleSet, date(2026, 3, 2))
	if len(got) != 1 || got[0].ID != "mon" {
		t.Fatalf("expected only the Monday rule, got %+v", got)
	}

	got = Active(ruleSet, date(2026, 3, 3))
	if len(got) != 1 || got[0].ID != "tue" {
		t.Fatalf("expected only the Tuesday rule, got %+v", got)
	}
}

func TestActive_SkipsInactive(t *testing.T) {
	ruleSet := []model.AvailabilityRule{
		{ID: "off", Weekday: 0, Active: false},
	}
	if got := Active(ruleSet, date(2026, 3, 2)); len(got) != 0 {
		t.Fatalf("inactive rule must not match, got %+v", got)
	}
}

func TestActive_DateBounds(t *testing.T) {
	from := date(2026, 3, 2)
	to := date(2026, 3, 16)
	rule := model.AvailabilityRule{ID: "bounded", Weekday: 0, Active: true, DateFrom: &from, DateTo: &to}

	cases := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"before window", date(2026, 2, 23), false},
		{"first day inclusive", date(2026, 3, 2), true},
		{"inside window", date(2026, 3, 9), true},
		{"last day inclusive", date(2026, 3, 16), true},
		{"after window", date(2026, 3, 23), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Active([]model.AvailabilityRule{rule}, tc.day)
			if (len(got) == 1) != tc.want {
				t.Fatalf("day %s: matched=%v, want %v", tc.day.Format("2006-01-02"), len(got) == 1, tc.want)
			}
		})
	}
}

func TestActive_ExclusionDates(t *testing.T) {
	rule := model.AvailabilityRule{
		ID: "excl", Weekday: 0, Active: true,
		ExclusionDates: "2026-03-02, garbage, 2026-03-16,",
	}

	if got := Active([]model.AvailabilityRule{rule}, date(2026, 3, 2)); len(got) != 0 {
		t.Fatalf("excluded date must not match, got %+v", got)
	}
	if got := Active([]model.AvailabilityRule{rule}, date(2026, 3, 16)); len(got) != 0 {
		t.Fatalf("second excluded date must not match, got %+v", got)
	}
	// Malformed tokens are skipped; the rule still applies on other Mondays.
	if got := Active([]model.AvailabilityRule{rule}, date(2026, 3, 9)); len(got) != 1 {
		t.Fatalf("non-excluded Monday must match, got %+v", got)
	}
}

func TestActive_Ordering(t *testing.T) {
	ruleSet := []model.AvailabilityRule{
		{ID: "b", Weekday: 0, Active: true, Sequence: 20},
		{ID: "c", Weekday: 0, Active: true, Sequence: 10},
		{ID: "a", Weekday: 0, Active: true, Sequence: 20},
	}
	got := Active(ruleSet, date(2026, 3, 2))
	if len(got) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(got))
	}
	wantOrder := []string{"c", "a", "b"}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, got[i].ID, want)
		}
	}
}
