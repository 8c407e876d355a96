// Package fakebackend is an in-process authentication backend speaking the same HTTP
// contract as the real one. Tests and the load generator run it behind httptest.
//
// Access tokens are Ed25519 JWTs minted by jwt.Issuer; refresh tokens are random UUIDs
// that rotate on every refresh. Knobs let callers expire access tokens, fail or hold
// refreshes and fail logouts.
package fakebackend
