// Package jwt reads access-token claims on the client and mints test tokens.
//
// [ExpiresAt] and [Inspect] decode a token without verifying its signature. The client
// cannot hold the backend's key and only uses the expiry to schedule refreshes; the
// backend remains the authority on validity.
//
// [Issuer] signs and verifies tokens with HS256 or Ed25519. It backs the fake backend
// used by tests and the load generator.
package jwt
