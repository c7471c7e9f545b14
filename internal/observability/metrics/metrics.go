package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the booking widget flows.
type WidgetMetrics struct {
	slotResolutions  *prometheus.CounterVec
	eligibleSlots    prometheus.Histogram
	submissions      *prometheus.CounterVec
	sessionMutations *prometheus.CounterVec
	submitLatency    *prometheus.HistogramVec
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		slotResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "slot_resolutions_total",
			Help:      "Slot resolutions by outcome (slots, empty, error)",
		}, []string{"result"}),
		eligibleSlots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "widget",
			Name:      "eligible_slots",
			Help:      "Number of eligible start times per resolution",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 96},
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "submissions_total",
			Help:      "Booking submissions by status",
		}, []string{"status"}),
		sessionMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Name:      "session_mutations_total",
			Help:      "Session mutations by operation",
		}, []string{"op"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "widget",
			Name:      "submit_latency_seconds",
			Help:      "Latency of handing a booking to the downstream transport",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotResolutions, m.eligibleSlots, m.submissions, m.sessionMutations, m.submitLatency)
	return m
}

// ObserveResolution records one slot resolution. A negative count marks a failure.
func (m *WidgetMetrics) ObserveResolution(count int) {
	if m == nil {
		return
	}
	switch {
	case count < 0:
		m.slotResolutions.WithLabelValues("error").Inc()
		return
	case count == 0:
		m.slotResolutions.WithLabelValues("empty").Inc()
	default:
		m.slotResolutions.WithLabelValues("slots").Inc()
	}
	m.eligibleSlots.Observe(float64(count))
}

func (m *WidgetMetrics) ObserveSubmission(status string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(status).Inc()
}

func (m *WidgetMetrics) ObserveMutation(op string) {
	if m == nil {
		return
	}
	m.sessionMutations.WithLabelValues(op).Inc()
}

func (m *WidgetMetrics) ObserveSubmitLatency(transport string, seconds float64) {
	if m == nil {
		return
	}
	m.submitLatency.WithLabelValues(transport).Observe(seconds)
}
