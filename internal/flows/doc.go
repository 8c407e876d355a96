// Package flows contains the orchestration steps behind every Orchestrator operation.
//
// Each flow function (RunLogin, RunVerifyTwoFactor, RunRefresh, RunLogout, RunRestore)
// accepts a typed dependency struct and returns a result carrying either the payload or
// a classified failure. The root package maps failures onto its public errors and state
// transitions.
//
// # Architecture boundaries
//
// Flow functions coordinate the token store, the backend client and the user fetch.
// They do NOT own any of these resources, and they never emit state transitions:
// ownership of the state machine stays with the Orchestrator.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goSession (to avoid import cycles).
//   - Deduplicate refreshes; callers wrap RunRefresh in a refresh.Guard.
package flows
