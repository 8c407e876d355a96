package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

// LogoutStore is the part of session.Store the logout flow needs.
type LogoutStore interface {
	Credential(ctx context.Context) (session.Credential, error)
	ClearTokens(ctx context.Context) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Store      LogoutStore
	CallLogout func(ctx context.Context, accessToken, refreshToken string) error
	// OnCleared runs after the local credential is gone and before the backend is told.
	OnCleared func()
}

// LogoutResult reports what happened. Logout always succeeds locally; the errors are
// informational.
type LogoutResult struct {
	ReadErr   error
	ClearErr  error
	RevokeErr error
	Revoked   bool
}

// RunLogout clears the local credential first, then asks the backend to revoke it.
func RunLogout(ctx context.Context, deps LogoutDeps) LogoutResult {
	var res LogoutResult

	cred, err := deps.Store.Credential(ctx)
	res.ReadErr = err
	res.ClearErr = deps.Store.ClearTokens(ctx)
	if deps.OnCleared != nil {
		deps.OnCleared()
	}

	if !cred.Valid() || deps.CallLogout == nil {
		return res
	}
	res.RevokeErr = deps.CallLogout(ctx, cred.AccessToken, cred.RefreshToken)
	res.Revoked = res.RevokeErr == nil
	return res
}
