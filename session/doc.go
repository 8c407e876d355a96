// Package session provides custody of the client credential pair (access + refresh
// token), its persistence through a pluggable key-value store, and the single proactive
// refresh timer.
//
// # Persistence
//
// The [Store] reads and writes two logical keys through a [KV]. Adapters are provided for
// process memory ([MemoryKV]), Redis ([RedisKV]) and a YAML file on disk ([FileKV]). When
// the adapter also implements [BatchKV] both tokens are written and deleted in a single
// round-trip, so another process never observes a half-written pair.
//
// # Refresh scheduling
//
// Every successful [Store.SetTokens] cancels the pending [Task] and schedules a new one
// through the configured [Clock]. When the task fires the store invokes the refresh
// handler installed with [Store.SetRefreshHandler]. The store never talks to the backend
// itself.
//
// # Architecture boundaries
//
// This package owns the [Credential] model, the [Store] and the KV adapters. It does NOT
// issue HTTP requests, interpret backend responses, or decide when a session is
// unrecoverable; those responsibilities belong to the orchestrator.
//
// # What this package must NOT do
//
//   - Import goSession, api, transport or refresh (no upward imports).
//   - Log token values.
//   - Clear tokens on its own initiative.
package session
