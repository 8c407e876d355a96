package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/transport"
)

var (
	// ErrAuthenticationFailed is returned when the backend rejects credentials or an OTP.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSessionExpired is returned when the refresh token is invalid or missing.
	ErrSessionExpired = errors.New("session expired")
	// ErrNetwork is returned when the backend could not be reached.
	ErrNetwork = errors.New("network failure")
	// ErrUnauthorized is returned when a resource request is still rejected after the
	// one permitted refresh-and-retry.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshFailed marks every error caused by a failed token refresh. The session
	// has been logged out when it is returned.
	ErrRefreshFailed = transport.ErrRefreshFailed
	// ErrRequestFailed is returned for non-2xx resource responses other than 401.
	ErrRequestFailed = errors.New("request failed")
	// ErrInvalidInput is returned when login or OTP input fails validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidResponse is returned when a backend body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid backend response")
	// ErrStoreUnavailable is returned when the token store cannot be read or written.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrNotInitialized is returned by operations on a nil Orchestrator.
	ErrNotInitialized = errors.New("orchestrator not initialized")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("orchestrator closed")
)
