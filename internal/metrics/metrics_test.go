package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStreamMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStreamMetrics(reg)

	m.ObserveEvent("content_delta")
	m.ObserveEvent("content_delta")
	m.ObserveEvent("reasoning_delta")
	m.ObserveFirstToken(300 * time.Millisecond)
	m.ObserveTokens("assistant", 12)
	m.ObserveTokens("user", 0)
	m.ObserveStream("ok", 2*time.Second, 3)

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("content_delta")); got != 2 {
		t.Errorf("content_delta events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.streamsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok streams = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesSkipped); got != 3 {
		t.Errorf("skipped frames = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.tokensTotal.WithLabelValues("assistant")); got != 12 {
		t.Errorf("assistant tokens = %v, want 12", got)
	}
	if got := testutil.CollectAndCount(m.tokensTotal); got != 1 {
		t.Errorf("token series = %d, want 1", got)
	}
}

func TestStreamMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewStreamMetrics(nil)
	m.ObserveStream("error", time.Second, 0)

	if got, err := testutil.GatherAndCount(reg, "lumin_stream_streams_total"); err != nil || got != 1 {
		t.Errorf("registered series = %d, want 1", got)
	}
}

func TestStreamMetricsNilSafe(t *testing.T) {
	var m *StreamMetrics
	m.ObserveEvent("content_delta")
	m.ObserveFirstToken(time.Second)
	m.ObserveTokens("user", 5)
	m.ObserveStream("ok", time.Second, 1)
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStreamMetrics(reg)
	m.ObserveStream("ok", time.Second, 0)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `lumin_stream_streams_total{outcome="ok"} 1`) {
		t.Errorf("body missing stream counter:\n%s", rec.Body.String())
	}
}
