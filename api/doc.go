// Package api is the HTTP client for the authentication backend.
//
// # Endpoints
//
//   - POST /api/token (form) logs in, or reports that a second factor is required.
//   - POST /api/auth/verify-2fa exchanges an email and OTP for a token pair.
//   - POST /api/auth/refresh rotates the token pair.
//   - POST /api/auth/logout revokes the pair.
//   - GET /api/auth/me returns the current user.
//
// # Errors
//
// Network failures wrap [ErrTransport]. A non-2xx response, or a 2xx envelope with
// success=false, is returned as a [*StatusError] carrying the backend's message (from
// "message" or FastAPI-style "detail"). Bodies that cannot be decoded wrap
// [ErrMalformedResponse].
//
// # What this package must NOT do
//
//   - Store tokens or schedule refreshes.
//   - Retry requests.
//   - Import goSession, session, or refresh.
package api
