package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics exposes counters/histograms for completion streams.
// A nil *StreamMetrics is valid and records nothing.
type StreamMetrics struct {
	streamsTotal  *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec
	framesSkipped prometheus.Counter
	tokensTotal   *prometheus.CounterVec
	firstToken    prometheus.Histogram
	duration      *prometheus.HistogramVec
}

// NewStreamMetrics registers the stream metrics with reg, or the default
// registerer when reg is nil
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		streamsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "streams_total",
			Help:      "Completed response streams by outcome",
		}, []string{"outcome"}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Decoded stream events by type",
		}, []string{"type"}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "frames_skipped_total",
			Help:      "Data frames dropped as malformed or provider errors",
		}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "tokens_total",
			Help:      "Estimated tokens by role",
		}, []string{"role"}),
		firstToken: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "first_token_seconds",
			Help:      "Time from request to the first delta",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lumin",
			Subsystem: "stream",
			Name:      "duration_seconds",
			Help:      "Total stream duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.streamsTotal, m.eventsTotal, m.framesSkipped, m.tokensTotal, m.firstToken, m.duration)
	return m
}

func (m *StreamMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType).Inc()
}

func (m *StreamMetrics) ObserveFirstToken(d time.Duration) {
	if m == nil {
		return
	}
	m.firstToken.Observe(d.Seconds())
}

func (m *StreamMetrics) ObserveTokens(role string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensTotal.WithLabelValues(role).Add(float64(n))
}

// ObserveStream records a finished stream
func (m *StreamMetrics) ObserveStream(outcome string, d time.Duration, skippedFrames int) {
	if m == nil {
		return
	}
	m.streamsTotal.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(d.Seconds())
	if skippedFrames > 0 {
		m.framesSkipped.Add(float64(skippedFrames))
	}
}
