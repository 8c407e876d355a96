// Package notify implements async, ordered delivery of values to a sink.
//
// # Components
//
//   - [Sink]: consumer interface (function adapter, channel, no-op).
//   - [Dispatcher]: queued relay with one delivery goroutine, so a sink sees values
//     in the order they were emitted. Emit never waits for the sink.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. It does NOT decide what to emit; the
// Orchestrator publishes state transitions through it.
//
// # What this package must NOT do
//
//   - Filter or reorder values.
//   - Import goSession or any sibling internal package.
//   - Perform I/O beyond what a caller-supplied Sink does.
package notify
