package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/session"
)

// ErrNoRefreshToken is returned when a refresh is requested but no refresh token is
// stored.
var ErrNoRefreshToken = errors.New("no refresh token stored")

// RefreshResult carries either the new access token or failure metadata.
type RefreshResult struct {
	Failure     FailureKind
	Err         error
	AccessToken string
	// Cleared reports whether this refresh removed the stored credential.
	Cleared bool
	// Adopted reports that the credential was replaced by someone else while the
	// backend call was in flight, and the newer access token was returned instead.
	Adopted bool
}

// RefreshStore is the part of session.Store the refresh flow needs.
type RefreshStore interface {
	Snapshot(ctx context.Context) (session.Credential, uint64, error)
	ReplaceTokens(ctx context.Context, epoch uint64, accessToken, refreshToken string) error
	ClearTokensIf(ctx context.Context, epoch uint64) (bool, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Store       RefreshStore
	CallRefresh func(ctx context.Context, refreshToken string) (api.TokenPair, error)
	Warn        func(string, ...any)
}

// RunRefresh exchanges the stored refresh token for a new pair and writes it back.
//
// Any failure clears the credential the refresh started from, unless that credential
// was already replaced or cleared by a concurrent login or logout.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	cred, epoch, err := deps.Store.Snapshot(ctx)
	if err != nil {
		return RefreshResult{Failure: FailureStore, Err: err}
	}
	if cred.RefreshToken == "" {
		return fail(ctx, deps, epoch, FailureNoCredential, ErrNoRefreshToken)
	}

	pair, err := deps.CallRefresh(ctx, cred.RefreshToken)
	if err != nil {
		kind := Classify(err)
		if kind == FailureUnknown {
			kind = FailureNetwork
		}
		return fail(ctx, deps, epoch, kind, err)
	}

	err = deps.Store.ReplaceTokens(ctx, epoch, pair.AccessToken, pair.RefreshToken)
	switch {
	case err == nil:
		return RefreshResult{AccessToken: pair.AccessToken}
	case errors.Is(err, session.ErrSuperseded):
		return adopt(ctx, deps)
	default:
		// ReplaceTokens leaves the store empty when persistence fails.
		return RefreshResult{Failure: FailureStore, Err: err, Cleared: true}
	}
}

// adopt resolves a refresh whose result lost the race against another write. A newer
// login wins; a logout means the refresh failed.
func adopt(ctx context.Context, deps RefreshDeps) RefreshResult {
	cred, _, err := deps.Store.Snapshot(ctx)
	if err != nil {
		return RefreshResult{Failure: FailureStore, Err: err}
	}
	if cred.AccessToken == "" {
		return RefreshResult{Failure: FailureSuperseded, Err: session.ErrSuperseded}
	}
	return RefreshResult{AccessToken: cred.AccessToken, Adopted: true}
}

func fail(ctx context.Context, deps RefreshDeps, epoch uint64, kind FailureKind, cause error) RefreshResult {
	cleared, err := deps.Store.ClearTokensIf(ctx, epoch)
	if err != nil && deps.Warn != nil {
		deps.Warn("goSession: clearing tokens after failed refresh failed", "error", err)
	}
	return RefreshResult{
		Failure: kind,
		Err:     fmt.Errorf("refresh: %w", cause),
		Cleared: cleared,
	}
}
