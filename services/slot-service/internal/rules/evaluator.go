// Package rules decides which availability rules apply to a given calendar
// date. The rule set is fetched once per engine call; evaluation itself is a
// pure in-memory filter so the per-day cost inside a date range stays flat.
package rules

import (
	"sort"
	"strings"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

const dateLayout = "2006-01-02"

// Active returns the rules applicable to date, in deterministic
// (Sequence, ID) order. A date with no matching rules is a normal empty
// result, not an error.
func Active(ruleSet []model.AvailabilityRule, date time.Time) []model.AvailabilityRule {
	weekday := model.RuleWeekday(date)

	var out []model.AvailabilityRule
	for _, r := range ruleSet {
		if !r.Active {
			continue
		}
		if r.Weekday != weekday {
			continue
		}
		if !activeForDate(r, date) {
			continue
		}
		if dateExcluded(r, date) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Sequence != out[j].Sequence {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// activeForDate checks the optional [DateFrom, DateTo] bounds. Bounds are
// date-only; comparison is by calendar day.
func activeForDate(r model.AvailabilityRule, date time.Time) bool {
	day := toDay(date)
	if r.DateFrom != nil && day.Before(toDay(*r.DateFrom)) {
		return false
	}
	if r.DateTo != nil && day.After(toDay(*r.DateTo)) {
		return false
	}
	return true
}

// dateExcluded checks the comma-separated exclusion list. Malformed tokens
// are ignored rather than failing the whole rule.
func dateExcluded(r model.AvailabilityRule, date time.Time) bool {
	if r.ExclusionDates == "" {
		return false
	}
	want := date.Format(dateLayout)
	for _, tok := range strings.Split(r.ExclusionDates, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, tok); err != nil {
			continue
		}
		if tok == want {
			return true
		}
	}
	return false
}

func toDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
