package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/transport"
)

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidInput
	FailureNoCredential
	FailureRejected
	FailureNetwork
	FailureMalformed
	FailureStore
	FailureSuperseded
	FailureSessionExpired
	FailureCanceled
	FailureUnknown
)

var failureNames = [...]string{
	FailureNone:           "none",
	FailureInvalidInput:   "invalid_input",
	FailureNoCredential:   "no_credential",
	FailureRejected:       "rejected",
	FailureNetwork:        "network",
	FailureMalformed:      "malformed",
	FailureStore:          "store",
	FailureSuperseded:     "superseded",
	FailureSessionExpired: "session_expired",
	FailureCanceled:       "canceled",
	FailureUnknown:        "unknown",
}

func (k FailureKind) String() string {
	if k < 0 || int(k) >= len(failureNames) {
		return "unknown"
	}
	return failureNames[k]
}

// Classify maps an error returned by a collaborator onto a [FailureKind].
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var se *api.StatusError
	switch {
	case errors.Is(err, transport.ErrRefreshFailed):
		return FailureSessionExpired
	case errors.As(err, &se):
		return FailureRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, api.ErrTransport):
		return FailureNetwork
	case errors.Is(err, api.ErrMalformedResponse):
		return FailureMalformed
	case errors.Is(err, session.ErrSuperseded):
		return FailureSuperseded
	case errors.Is(err, session.ErrStoreUnavailable), errors.Is(err, session.ErrInvalidCredential):
		return FailureStore
	default:
		return FailureUnknown
	}
}

// Message returns the user-visible text for err: the backend's message when it sent
// one, the error text otherwise.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
