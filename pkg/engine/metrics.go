package engine

import (
	"strconv"

	"github.com/getmockd/mirage/pkg/metrics"
	"github.com/getmockd/mirage/pkg/requestlog"
)

// serverMetrics are the series a Server records for every call.
type serverMetrics struct {
	registry *metrics.Registry
	calls    *metrics.Counter
	duration *metrics.Histogram
}

func newServerMetrics(s *Server) *serverMetrics {
	reg := metrics.NewRegistry()
	m := &serverMetrics{
		registry: reg,
		calls: reg.NewCounter("mirage_calls_total",
			"Dispatched calls by method, outcome and response status.",
			"method", "outcome", "status"),
		duration: reg.NewHistogram("mirage_call_duration_seconds",
			"Time to answer a call, including simulated delays.",
			metrics.DurationBuckets, "outcome"),
	}
	reg.NewGaugeFunc("mirage_records", "Records stored per model.", s.recordCounts, "model")
	return m
}

func (m *serverMetrics) observe(e *requestlog.Entry) {
	status := "none"
	if e.Status != 0 {
		status = strconv.Itoa(e.Status)
	}
	_ = m.calls.Inc(e.Method, string(e.Outcome), status)
	_ = m.duration.Observe(e.Duration.Seconds(), string(e.Outcome))
}

// recordCounts reports the size of every collection.
func (s *Server) recordCounts() map[string]float64 {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	out := make(map[string]float64)
	for name, records := range s.schema.Db().Dump() {
		out[name] = float64(len(records))
	}
	return out
}

// Metrics returns the server's metric registry.
func (s *Server) Metrics() *metrics.Registry {
	return s.metrics.registry
}
