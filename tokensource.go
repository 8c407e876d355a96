package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/flows"
)

// tokenSource feeds the retry transport from the store and the refresh guard.
type tokenSource struct {
	o *Orchestrator
}

func (ts tokenSource) AccessToken(ctx context.Context) (string, error) {
	return ts.o.store.AccessToken(ctx)
}

// Refresh returns a token to replace stale. If another caller already rotated the pair
// the stored token is returned without calling the backend.
func (ts tokenSource) Refresh(ctx context.Context, stale string) (string, error) {
	o := ts.o
	o.metrics.Inc(MetricRefreshReactive)

	if stale != "" {
		current, err := o.store.AccessToken(ctx)
		if err == nil && current != "" && current != stale {
			o.metrics.Inc(MetricRefreshReused)
			return current, nil
		}
	}

	token, shared, err := o.guard.Do(ctx, o.runRefresh)
	if shared {
		o.metrics.Inc(MetricRefreshShared)
	}
	return token, err
}

// runRefresh is the single in-flight refresh. It runs detached from the caller's
// cancellation; see refresh.Guard.
func (o *Orchestrator) runRefresh(ctx context.Context) (string, error) {
	res := flows.RunRefresh(ctx, o.flows.Refresh)
	if res.Failure != flows.FailureNone {
		o.metrics.Inc(MetricRefreshFailure)
		o.logger.Warn("goSession: token refresh failed",
			slog.String("reason", res.Failure.String()),
			slog.Bool("cleared", res.Cleared),
		)
		if res.Failure == flows.FailureRejected {
			return "", fmt.Errorf("%w: %w", ErrSessionExpired, res.Err)
		}
		return "", o.failure(res.Failure, res.Err)
	}
	if res.Adopted {
		o.logger.Debug("goSession: refresh superseded by a newer login")
		return res.AccessToken, nil
	}

	o.metrics.Inc(MetricRefreshSuccess)
	o.machine.applyWith(ctx, keepUser)
	return res.AccessToken, nil
}

// keepUser republishes whatever user the state holds when the refresh lands, so a
// logout or a different login in the meantime is not overwritten.
func keepUser(s AuthState) Event {
	return TokenRefresh{User: s.User}
}

// onRefreshDue runs when the proactive timer fires. Failures are only logged: no caller
// is waiting, and the next request finds the session gone.
func (o *Orchestrator) onRefreshDue() {
	if o.closed.Load() {
		return
	}
	o.metrics.Inc(MetricRefreshProactive)

	_, _, err := o.guard.Do(context.Background(), o.runRefresh)
	if err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Info("goSession: proactive refresh did not complete", slog.Any("error", err))
	}
}

// Refresh rotates the token pair now, sharing an in-flight refresh if there is one. A
// failure clears the session and emits LOGOUT.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if err := o.usable(); err != nil {
		return err
	}
	_, shared, err := o.guard.Do(ctx, o.runRefresh)
	if shared {
		o.metrics.Inc(MetricRefreshShared)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	o.forceLogout(ctx, err)
	return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
}
