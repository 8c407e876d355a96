package flows

import (
	"context"

	"github.com/MrEthical07/goSession/api"
)

// LoginResult carries the authenticated user, a pending second factor, or failure
// metadata.
type LoginResult struct {
	Failure           FailureKind
	Err               error
	User              *api.User
	TwoFactorRequired bool
}

// LoginStore is the part of session.Store the login flows need.
type LoginStore interface {
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	ClearTokens(ctx context.Context) error
}

// LoginDeps captures login and two-factor verification dependencies.
type LoginDeps struct {
	Validate   func(any) error
	CallLogin  func(ctx context.Context, username, password string) (api.LoginResult, error)
	CallVerify func(ctx context.Context, email, otp string) (api.TokenPair, error)
	FetchUser  func(ctx context.Context) (*api.User, error)
	Store      LoginStore
	Warn       func(string, ...any)
}

// RunLogin performs a password login. A two-factor account yields TwoFactorRequired
// with nothing stored.
func RunLogin(ctx context.Context, username, password string, deps LoginDeps) LoginResult {
	if deps.Validate != nil {
		if err := deps.Validate(LoginInput{Username: username, Password: password}); err != nil {
			return LoginResult{Failure: FailureInvalidInput, Err: err}
		}
	}

	res, err := deps.CallLogin(ctx, username, password)
	if err != nil {
		return LoginResult{Failure: Classify(err), Err: err}
	}
	if res.TwoFactorRequired {
		return LoginResult{TwoFactorRequired: true}
	}
	return establish(ctx, res.Tokens, deps)
}

// RunVerifyTwoFactor completes a login held at the second factor.
func RunVerifyTwoFactor(ctx context.Context, email, otp string, deps LoginDeps) LoginResult {
	if deps.Validate != nil {
		if err := deps.Validate(TwoFactorInput{Email: email, OTP: otp}); err != nil {
			return LoginResult{Failure: FailureInvalidInput, Err: err}
		}
	}

	pair, err := deps.CallVerify(ctx, email, otp)
	if err != nil {
		return LoginResult{Failure: Classify(err), Err: err}
	}
	return establish(ctx, pair, deps)
}

// establish stores the pair and fetches the user it belongs to. If the user cannot be
// fetched the pair is removed again.
func establish(ctx context.Context, pair api.TokenPair, deps LoginDeps) LoginResult {
	if err := deps.Store.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return LoginResult{Failure: FailureStore, Err: err}
	}

	user, err := deps.FetchUser(ctx)
	if err != nil {
		if clearErr := deps.Store.ClearTokens(ctx); clearErr != nil && deps.Warn != nil {
			deps.Warn("goSession: clearing tokens after failed user fetch failed", "error", clearErr)
		}
		return LoginResult{Failure: Classify(err), Err: err}
	}
	return LoginResult{User: user}
}
