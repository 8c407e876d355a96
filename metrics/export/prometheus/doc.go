// Package prometheus exposes goSession counters as a prometheus.Collector.
//
// Values are read from a metrics snapshot at scrape time; the orchestrator keeps no
// Prometheus state of its own.
package prometheus
