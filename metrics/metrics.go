package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for conversation events and
// directory lookups.
type BotMetrics struct {
	eventsTotal   *prometheus.CounterVec
	eventLatency  *prometheus.HistogramVec
	droppedTotal  prometheus.Counter
	lookupsTotal  *prometheus.CounterVec
	lookupLatency *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisorbot",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Total handled user events",
		}, []string{"kind", "outcome"}),
		eventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "advisorbot",
			Subsystem: "conversation",
			Name:      "event_latency_seconds",
			Help:      "Time from receiving an event to sending its replies",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		droppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisorbot",
			Subsystem: "conversation",
			Name:      "dropped_events_total",
			Help:      "Events rejected because the user queue was full or the bot was stopping",
		}),
		lookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisorbot",
			Subsystem: "directory",
			Name:      "lookups_total",
			Help:      "Total directory lookups",
		}, []string{"backend", "outcome"}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "advisorbot",
			Subsystem: "directory",
			Name:      "lookup_latency_seconds",
			Help:      "Latency of directory lookups",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.eventLatency, m.droppedTotal, m.lookupsTotal, m.lookupLatency)
	return m
}

func (m *BotMetrics) ObserveEvent(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind, outcome).Inc()
	m.eventLatency.WithLabelValues(kind).Observe(seconds)
}

func (m *BotMetrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.droppedTotal.Inc()
}

// ObserveLookup implements directory.Observer.
func (m *BotMetrics) ObserveLookup(backend, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(backend, outcome).Inc()
	m.lookupLatency.WithLabelValues(backend).Observe(seconds)
}
