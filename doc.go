// Package goSession manages a client-side authenticated session against a token-issuing
// backend: it holds the access/refresh token pair, refreshes it before it expires and
// whenever the backend answers 401, and publishes an observable authentication state.
//
// The package is designed for concurrent use: [Orchestrator] methods may be called from
// any goroutine after [Builder.Build].
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Orchestrator], [Builder], [Config], the
// [AuthState] value and its transition events. Token custody lives in session, the
// single-flight refresh in refresh, the 401 retry in transport, and backend calls in
// api. Flow orchestration and transition delivery live under internal/.
//
// # Refresh guarantees
//
//   - At most one refresh call is in flight; concurrent 401s and the proactive timer
//     share it.
//   - A request is retried at most once, after at most one refresh.
//   - A failed refresh clears the tokens, and the request path emits LOGOUT.
//   - A logout during an in-flight refresh is never undone by the refresh result.
//
// # What this package must NOT do
//
//   - Log or publish token values.
//   - Verify token signatures; the backend is the authority on validity.
//   - Import any sub-package that re-imports goSession.
package goSession
