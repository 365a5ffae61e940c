package metrics

import "github.com/prometheus/client_golang/prometheus"

// Ops exposes the live Prometheus surface for slot generation. All methods
// are nil-safe so callers can run without a registry.
type Ops struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	slotsReturned      prometheus.Histogram
	invalidationsTotal *prometheus.CounterVec
}

func NewOps(reg prometheus.Registerer) *Ops {
	o := &Ops{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotengine",
			Subsystem: "slots",
			Name:      "requests_total",
			Help:      "Total slot generation requests",
		}, []string{"cache"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slotengine",
			Subsystem: "slots",
			Name:      "request_duration_seconds",
			Help:      "Latency of slot generation requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cache"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "slotengine",
			Subsystem: "slots",
			Name:      "returned_per_request",
			Help:      "Slots returned per generation request",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500},
		}),
		invalidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotengine",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Total whole-cache invalidations",
		}, []string{"source"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(o.requestsTotal, o.requestDuration, o.slotsReturned, o.invalidationsTotal)
	return o
}

func (o *Ops) ObserveRequest(r Request) {
	if o == nil {
		return
	}
	cache := "miss"
	if r.CacheHit {
		cache = "hit"
	}
	o.requestsTotal.WithLabelValues(cache).Inc()
	o.requestDuration.WithLabelValues(cache).Observe(r.Duration.Seconds())
	o.slotsReturned.Observe(float64(r.SlotsReturned))
}

// ObserveInvalidation counts one whole-cache invalidation. Source is "http"
// for local mutations and "kafka" for fanout from other replicas.
func (o *Ops) ObserveInvalidation(source string) {
	if o == nil {
		return
	}
	o.invalidationsTotal.WithLabelValues(source).Inc()
}
