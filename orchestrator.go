package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/refresh"
	"github.com/MrEthical07/goSession/session"
)

// Orchestrator is the client session: it logs users in and out, keeps the token pair
// fresh, executes authenticated requests and drives the observable [AuthState].
//
// All methods are safe for concurrent use. Build one with [Builder.Build].
type Orchestrator struct {
	config Config

	store   *session.Store
	backend *api.Client // unauthenticated: login, verify, refresh, logout
	authed  *api.Client // attaches the bearer token with refresh-and-retry
	http    *http.Client

	guard   refresh.Guard[string]
	machine *stateMachine
	metrics *Metrics
	logger  *slog.Logger
	flows   flows.Deps

	ownedRedis redis.UniversalClient
	closed     atomic.Bool
}

// LoginResult is returned by [Orchestrator.Login]. When TwoFactorRequired is set the
// login is pending and must be completed with [Orchestrator.VerifyTwoFactor].
type LoginResult struct {
	User              *User
	TwoFactorRequired bool
}

// Init restores a persisted session. With a stored credential it re-arms the refresh
// timer and fetches the user; without one it settles in the signed-out state.
//
// Init always leaves IsLoading false. The returned error is also recorded in the state.
func (o *Orchestrator) Init(ctx context.Context) error {
	if err := o.usable(); err != nil {
		return err
	}

	res := flows.RunRestore(ctx, o.flows.Restore)
	if res.Failure == flows.FailureNone {
		o.machine.apply(ctx, LoginSuccess{User: res.User})
		return nil
	}

	o.logger.Warn("goSession: restoring session failed", slog.String("reason", res.Failure.String()))
	o.machine.apply(ctx, LoginFailure{Err: flows.Message(res.Err)})
	return o.failure(res.Failure, res.Err)
}

// Login signs in with username and password.
//
// For a two-factor account nothing is stored, TwoFactorRequired is set in the state and
// the result, and the error is nil.
func (o *Orchestrator) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if err := o.usable(); err != nil {
		return LoginResult{}, err
	}
	o.machine.apply(ctx, LoginStart{})

	res := flows.RunLogin(ctx, username, password, o.flows.Login)
	switch {
	case res.Failure != flows.FailureNone:
		o.metrics.Inc(MetricLoginFailure)
		o.machine.apply(ctx, LoginFailure{Err: o.message(res.Failure, res.Err)})
		return LoginResult{}, o.failure(res.Failure, res.Err)
	case res.TwoFactorRequired:
		o.metrics.Inc(MetricTwoFactorRequired)
		o.machine.apply(ctx, SetTwoFactorRequired{Required: true})
		return LoginResult{TwoFactorRequired: true}, nil
	}

	o.metrics.Inc(MetricLoginSuccess)
	o.machine.apply(ctx, LoginSuccess{User: res.User})
	o.logger.Info("goSession: login succeeded", slog.Int64("user_id", res.User.ID))
	return LoginResult{User: cloneUser(res.User)}, nil
}

// VerifyTwoFactor completes a login held at the second factor.
func (o *Orchestrator) VerifyTwoFactor(ctx context.Context, email, otp string) error {
	if err := o.usable(); err != nil {
		return err
	}
	o.machine.apply(ctx, LoginStart{})

	res := flows.RunVerifyTwoFactor(ctx, email, otp, o.flows.Login)
	if res.Failure != flows.FailureNone {
		o.metrics.Inc(MetricTwoFactorFailure)
		o.machine.apply(ctx, LoginFailure{Err: o.message(res.Failure, res.Err)})
		return o.failure(res.Failure, res.Err)
	}

	o.metrics.Inc(MetricTwoFactorSuccess)
	o.machine.apply(ctx, LoginSuccess{User: res.User})
	o.logger.Info("goSession: two-factor login succeeded", slog.Int64("user_id", res.User.ID))
	return nil
}

// Logout clears the local credential, emits LOGOUT and then asks the backend to revoke
// the pair. It always succeeds locally; backend and store errors are only logged.
func (o *Orchestrator) Logout(ctx context.Context) {
	if o == nil || o.closed.Load() {
		return
	}
	o.metrics.Inc(MetricLogout)

	deps := o.flows.Logout
	deps.OnCleared = func() { o.machine.apply(ctx, Logout{}) }
	res := flows.RunLogout(ctx, deps)

	if res.ReadErr != nil {
		o.logger.Warn("goSession: reading credential for logout failed", slog.Any("error", res.ReadErr))
	}
	if res.ClearErr != nil {
		o.logger.Warn("goSession: clearing credential failed", slog.Any("error", res.ClearErr))
	}
	if res.RevokeErr != nil {
		o.metrics.Inc(MetricLogoutRevokeFailure)
		o.logger.Warn("goSession: backend logout failed", slog.Any("error", res.RevokeErr))
	}
}

// ClearError removes the recorded error.
func (o *Orchestrator) ClearError() {
	if o == nil || o.closed.Load() {
		return
	}
	o.machine.apply(context.Background(), ClearError{})
}

// SetError records msg as the current error.
func (o *Orchestrator) SetError(msg string) {
	if o == nil || o.closed.Load() {
		return
	}
	o.machine.apply(context.Background(), SetError{Err: msg})
}

// RefreshUser fetches the current user again and publishes it with TOKEN_REFRESH.
func (o *Orchestrator) RefreshUser(ctx context.Context) (*User, error) {
	if err := o.usable(); err != nil {
		return nil, err
	}
	user, err := o.authed.Me(ctx)
	if err != nil {
		err = o.failure(flows.Classify(err), err)
		if errors.Is(err, ErrRefreshFailed) {
			o.forceLogout(ctx, err)
		}
		return nil, err
	}
	o.machine.apply(ctx, TokenRefresh{User: user})
	return cloneUser(user), nil
}

// State returns a copy of the current state.
func (o *Orchestrator) State() AuthState {
	if o == nil {
		return InitialState()
	}
	return o.machine.snapshot()
}

// IsAuthenticated reports whether a credential is stored. It can be true while the
// state still reports IsLoading, before Init has fetched the user.
func (o *Orchestrator) IsAuthenticated(ctx context.Context) bool {
	if o == nil {
		return false
	}
	return o.store.IsAuthenticated(ctx)
}

// Ping checks that the token store is reachable.
func (o *Orchestrator) Ping(ctx context.Context) error {
	if err := o.usable(); err != nil {
		return err
	}
	_, err := o.store.Credential(ctx)
	return err
}

// Subscribe registers fn for every transition, delivered in order on a single
// goroutine. fn may call other Orchestrator methods but not Close. The returned
// function unsubscribes; calling it again is a no-op.
func (o *Orchestrator) Subscribe(fn func(Transition)) (unsubscribe func()) {
	if o == nil || fn == nil {
		return func() {}
	}
	return o.machine.subscribe(fn)
}

// HTTPClient returns the authenticated client used by [Orchestrator.Do]. Requests sent
// through it get the bearer token and refresh-and-retry, but a failed refresh does not
// emit LOGOUT; use Do for that.
func (o *Orchestrator) HTTPClient() *http.Client {
	return o.http
}

// MetricsSnapshot returns the current counters.
func (o *Orchestrator) MetricsSnapshot() MetricsSnapshot {
	if o == nil {
		return MetricsSnapshot{}
	}
	return o.metrics.Snapshot()
}

// Metrics exposes the live counters for exporters.
func (o *Orchestrator) Metrics() *Metrics {
	if o == nil {
		return nil
	}
	return o.metrics
}

// TransitionsDropped reports transitions lost because the notification queue was full.
func (o *Orchestrator) TransitionsDropped() uint64 {
	if o == nil {
		return 0
	}
	return o.machine.dropped()
}

// Close stops the refresh timer and delivers pending transitions. Stored tokens are
// kept, so a later process can Init from them. Close is idempotent.
func (o *Orchestrator) Close() error {
	if o == nil || !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	o.store.Close()
	o.machine.close()
	if o.ownedRedis != nil {
		return o.ownedRedis.Close()
	}
	return nil
}

func (o *Orchestrator) usable() error {
	if o == nil || o.machine == nil {
		return ErrNotInitialized
	}
	if o.closed.Load() {
		return ErrClosed
	}
	return nil
}

// forceLogout moves the state to signed-out after the session became unrecoverable.
// The refresh flow has already cleared the tokens. A refresh superseded by a logout
// already has its outcome published, so it is left alone.
func (o *Orchestrator) forceLogout(ctx context.Context, cause error) {
	if errors.Is(cause, session.ErrSuperseded) {
		return
	}
	o.metrics.Inc(MetricForcedLogout)
	o.logger.Warn("goSession: session expired, logging out")
	o.machine.apply(ctx, Logout{})
}

// failure maps a flow failure onto the package's error values, keeping the cause.
func (o *Orchestrator) failure(kind flows.FailureKind, err error) error {
	var sentinel error
	switch kind {
	case flows.FailureNone:
		return nil
	case flows.FailureInvalidInput:
		sentinel = ErrInvalidInput
	case flows.FailureRejected:
		sentinel = ErrAuthenticationFailed
	case flows.FailureNetwork:
		sentinel = ErrNetwork
	case flows.FailureMalformed:
		sentinel = ErrInvalidResponse
	case flows.FailureNoCredential, flows.FailureSuperseded, flows.FailureSessionExpired:
		sentinel = ErrSessionExpired
	case flows.FailureStore:
		if errors.Is(err, ErrStoreUnavailable) {
			return err
		}
		sentinel = ErrStoreUnavailable
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// message is the text recorded in AuthState.Error.
func (o *Orchestrator) message(kind flows.FailureKind, err error) string {
	if kind == flows.FailureInvalidInput {
		return inputMessage(err)
	}
	return flows.Message(err)
}
