// Package transport provides the HTTP round tripper that authenticates outgoing
// requests and recovers once from an expired access token.
//
// # Retry bound
//
// A request is sent with the current access token. If the response is 401 the token
// source is asked to refresh, and the request is replayed exactly once with the new
// token. A second 401 is returned to the caller as a response. A request made while no
// access token is stored triggers the refresh before the first send.
//
// Request bodies are replayed byte-for-byte: GetBody is used when set, otherwise the
// body is buffered before the first attempt.
//
// # What this package must NOT do
//
//   - Deduplicate refreshes (the token source does that).
//   - Retry on anything other than 401.
//   - Import goSession or session.
package transport
