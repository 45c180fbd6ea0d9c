// Package metrics exposes mirage server activity in the Prometheus text
// format (text/plain; version=0.0.4) using only the standard library.
//
// Each engine.Server owns a Registry, so servers created side by side in
// tests never share counters. The admin API serves it at
// <admin prefix>/metrics:
//
//   - mirage_calls_total: counter of dispatched calls (labels: method, outcome, status)
//   - mirage_call_duration_seconds: histogram of call durations including delays (labels: outcome)
//   - mirage_records: gauge of stored records (labels: model)
//
// # Usage
//
//	reg := metrics.NewRegistry()
//	calls := reg.NewCounter("mirage_calls_total", "Dispatched calls.", "method", "outcome", "status")
//	_ = calls.Inc("GET", "handled", "200")
//	http.Handle("/metrics", reg.Handler())
package metrics
