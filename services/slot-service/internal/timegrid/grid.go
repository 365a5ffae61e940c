// Package timegrid expands a rule's daily time window into discrete slot
// candidates.
//
// Three timezones are in play and must never be conflated: candidates are
// built in the rule's timezone, stored and compared in UTC, and rendered for
// the caller in a separate display timezone. This package owns the first two
// conversions; display rendering happens at assembly time in the engine.
package timegrid

import (
	"fmt"
	"time"

	"github.com/clinicware/slotengine/services/slot-service/internal/model"
)

// Candidate is one potential slot interval, expressed in the rule's timezone.
type Candidate struct {
	StartLocal time.Time
	EndLocal   time.Time
}

// StartUTC returns the candidate start converted to UTC.
func (c Candidate) StartUTC() time.Time { return c.StartLocal.UTC() }

// EndUTC returns the candidate end converted to UTC.
func (c Candidate) EndUTC() time.Time { return c.EndLocal.UTC() }

// Candidates expands rule's [HourFrom, HourTo) window on date into
// back-to-back slots of exactly slotDuration. A partial trailing slot is
// never emitted, so a window of length L yields floor(L/D) candidates; a
// duration longer than the window yields none. An unknown rule timezone is a
// configuration error.
func Candidates(rule model.AvailabilityRule, date time.Time, slotDuration time.Duration) ([]Candidate, error) {
	if slotDuration <= 0 {
		return nil, fmt.Errorf("timegrid: non-positive slot duration %s", slotDuration)
	}

	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timegrid: rule %s has unknown timezone %q: %w", rule.ID, rule.Timezone, err)
	}

	start := atHour(date, rule.HourFrom, loc)
	end := atHour(date, rule.HourTo, loc)
	if !end.After(start) {
		return nil, nil
	}

	var out []Candidate
	for cur := start; ; {
		next := cur.Add(slotDuration)
		if next.After(end) {
			break
		}
		out = append(out, Candidate{StartLocal: cur, EndLocal: next})
		cur = next
	}
	return out, nil
}

// atHour builds date @ fractional hour in loc. Fractions are minutes:
// 9.5 -> 09:30.
func atHour(date time.Time, hour float64, loc *time.Location) time.Time {
	h := int(hour)
	m := int((hour - float64(h)) * 60)
	return time.Date(date.Year(), date.Month(), date.Day(), h, m, 0, 0, loc)
}
