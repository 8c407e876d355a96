// Package refresh deduplicates concurrent credential refreshes.
//
// # Single flight
//
// A [Guard] admits at most one refresh call at a time. Callers arriving while a call is
// in flight wait for it and receive the same result, success or failure. Once the call
// settles the guard is idle again, so the next caller starts a fresh call.
//
// The shared call runs detached from any single caller's cancellation: a caller that
// gives up stops waiting, the others still get the result.
//
// # Architecture boundaries
//
// This package owns only the deduplication. What a refresh does (reading the stored
// refresh token, calling the backend, writing the new pair) is supplied by the caller.
//
// # What this package must NOT do
//
//   - Access the token store or the network.
//   - Import goSession, session, api, or transport.
//   - Retry a failed call.
package refresh
