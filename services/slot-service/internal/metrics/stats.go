package metrics

import (
	"math"
	"sort"
	"time"
)

// Stats are the aggregate numbers over a window of recorded requests.
// Durations are reported in seconds because they feed JSON dashboards.
type Stats struct {
	TotalRequests   int     `json:"total_requests"`
	AvgDuration     float64 `json:"avg_duration_seconds"`
	P95Duration     float64 `json:"p95_duration_seconds"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	SlowRequests    int     `json:"slow_requests"`
	AvgSlots        float64 `json:"avg_slots_per_request"`
	SlotsPerSecond  float64 `json:"slots_per_second"`
	Grade           string  `json:"performance_grade"`
	WindowDays      int     `json:"window_days"`
}

// TrendPoint is one day of the request trend.
type TrendPoint struct {
	Date         string  `json:"date"`
	Requests     int     `json:"requests"`
	AvgDuration  float64 `json:"avg_duration_seconds"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// Aggregate reduces a request window to Stats. P95 uses the nearest-rank
// method on the sorted durations.
func Aggregate(requests []Request, windowDays int) Stats {
	s := Stats{WindowDays: windowDays, Grade: Grade(0)}
	n := len(requests)
	if n == 0 {
		return s
	}

	durations := make([]float64, n)
	var totalDur, totalSlots, computeDur float64
	var hits, computedSlots int
	for i, r := range requests {
		sec := r.Duration.Seconds()
		durations[i] = sec
		totalDur += sec
		totalSlots += float64(r.SlotsReturned)
		if r.CacheHit {
			hits++
		} else {
			computeDur += sec
			computedSlots += r.SlotsReturned
		}
		// Slow is strictly greater than the threshold; an exactly 2s
		// request still grades acceptable.
		if r.Duration > SlowThreshold {
			s.SlowRequests++
		}
	}
	sort.Float64s(durations)

	s.TotalRequests = n
	s.AvgDuration = totalDur / float64(n)
	s.P95Duration = durations[p95Index(n)]
	s.CacheHitRate = float64(hits) / float64(n)
	s.AvgSlots = totalSlots / float64(n)
	if computeDur > 0 {
		s.SlotsPerSecond = float64(computedSlots) / computeDur
	}
	s.Grade = Grade(time.Duration(s.AvgDuration * float64(time.Second)))
	return s
}

func p95Index(n int) int {
	i := int(math.Floor(0.95 * float64(n)))
	if i >= n {
		i = n - 1
	}
	return i
}

// TrendOf buckets requests by calendar day (UTC) over the last windowDays
// days ending at now. Days with no requests still appear, zeroed.
func TrendOf(requests []Request, windowDays int, now time.Time) []TrendPoint {
	type bucket struct {
		count int
		dur   float64
		hits  int
	}
	buckets := make(map[string]*bucket, windowDays)
	for _, r := range requests {
		day := r.CreatedAt.UTC().Format("2006-01-02")
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.count++
		b.dur += r.Duration.Seconds()
		if r.CacheHit {
			b.hits++
		}
	}

	points := make([]TrendPoint, 0, windowDays)
	start := now.UTC().AddDate(0, 0, -(windowDays - 1))
	for i := 0; i < windowDays; i++ {
		day := start.AddDate(0, 0, i).Format("2006-01-02")
		p := TrendPoint{Date: day}
		if b, ok := buckets[day]; ok && b.count > 0 {
			p.Requests = b.count
			p.AvgDuration = b.dur / float64(b.count)
			p.CacheHitRate = float64(b.hits) / float64(b.count)
		}
		points = append(points, p)
	}
	return points
}
