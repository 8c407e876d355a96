// Package otel publishes goSession metrics through an OpenTelemetry Meter.
//
// [NewExporter] registers one observable counter per session counter and, for the
// request latency histogram, a cumulative bucket gauge labelled by "le" plus a count
// gauge. A single callback reads the orchestrator's snapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate orchestrator state.
package otel
