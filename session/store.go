package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultAccessKey is the KV key holding the access token.
	DefaultAccessKey = "access_token"
	// DefaultRefreshKey is the KV key holding the refresh token.
	DefaultRefreshKey = "refresh_token"
	// DefaultRefreshInterval assumes a 30 minute access-token lifetime and leaves a
	// 5 minute margin before expiry.
	DefaultRefreshInterval = 25 * time.Minute
)

// Options configures a [Store]. Zero fields fall back to the package defaults.
type Options struct {
	AccessKey  string
	RefreshKey string

	// RefreshInterval is the delay between a token write and the proactive refresh.
	RefreshInterval time.Duration

	// ExpiryLead enables expiry-aware scheduling when > 0: if Expiry can read an
	// expiry from the access token, the refresh fires ExpiryLead before it (never
	// later than RefreshInterval).
	ExpiryLead time.Duration
	Expiry     func(accessToken string) (time.Time, bool)

	Clock  Clock
	Logger *slog.Logger
}

// Store owns the credential pair and the proactive refresh timer.
//
// All methods are safe for concurrent use. Writes hold an exclusive lock across the
// whole KV round-trip, so readers never observe an access token from one pair next to
// a refresh token from another.
//
//	Docs: docs/session.md
type Store struct {
	kv   KV
	opts Options

	mu    sync.RWMutex
	epoch uint64

	timerMu  sync.Mutex
	timer    Task
	timerGen uint64
	nextAt   time.Time
	onDue    func()
	closed   bool
}

// NewStore creates a [Store] persisting through kv.
func NewStore(kv KV, opts Options) *Store {
	if opts.AccessKey == "" {
		opts.AccessKey = DefaultAccessKey
	}
	if opts.RefreshKey == "" {
		opts.RefreshKey = DefaultRefreshKey
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		kv:   kv,
		opts: opts,
	}
}

// SetRefreshHandler installs the callback run when the proactive timer fires. It runs
// on the timer's goroutine.
func (s *Store) SetRefreshHandler(fn func()) {
	s.timerMu.Lock()
	s.onDue = fn
	s.timerMu.Unlock()
}

// SetTokens atomically replaces the stored pair, persists it, cancels any pending
// refresh and schedules a new one.
//
// A persistence failure leaves the store empty rather than holding a mixed pair.
func (s *Store) SetTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrInvalidCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx, accessToken, refreshToken)
}

// ReplaceTokens behaves like [Store.SetTokens] but only if no other write or clear
// happened since epoch was captured with [Store.Snapshot]. It returns [ErrSuperseded]
// otherwise.
func (s *Store) ReplaceTokens(ctx context.Context, epoch uint64, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrInvalidCredential
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return ErrSuperseded
	}
	return s.writeLocked(ctx, accessToken, refreshToken)
}

func (s *Store) writeLocked(ctx context.Context, accessToken, refreshToken string) error {
	s.epoch++

	var err error
	if b, ok := s.kv.(BatchKV); ok {
		err = b.SetMulti(ctx, map[string]string{
			s.opts.AccessKey:  accessToken,
			s.opts.RefreshKey: refreshToken,
		})
	} else {
		err = s.kv.Set(ctx, s.opts.RefreshKey, refreshToken)
		if err == nil {
			err = s.kv.Set(ctx, s.opts.AccessKey, accessToken)
		}
	}
	if err != nil {
		s.cancelTimer()
		if delErr := s.deleteLocked(ctx); delErr != nil {
			s.opts.Logger.Warn("goSession: cleanup after failed token write failed", slog.Any("error", delErr))
		}
		return wrapStoreErr(err)
	}

	s.schedule(s.refreshDelay(accessToken))
	return nil
}

// Snapshot returns the stored pair and the epoch it belongs to.
func (s *Store) Snapshot(ctx context.Context) (Credential, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, err := s.readLocked(ctx)
	return cred, s.epoch, err
}

// Credential returns the stored pair. Missing tokens are returned as "".
func (s *Store) Credential(ctx context.Context) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readLocked(ctx)
}

// AccessToken returns the stored access token, or "" when none is stored.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.readOne(ctx, s.opts.AccessKey)
}

// RefreshToken returns the stored refresh token, or "" when none is stored.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.readOne(ctx, s.opts.RefreshKey)
}

func (s *Store) readOne(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", wrapStoreErr(err)
	}
	return v, nil
}

func (s *Store) readLocked(ctx context.Context) (Credential, error) {
	if b, ok := s.kv.(BatchKV); ok {
		vals, err := b.GetMulti(ctx, s.opts.AccessKey, s.opts.RefreshKey)
		if err != nil {
			return Credential{}, wrapStoreErr(err)
		}
		if len(vals) != 2 {
			return Credential{}, fmt.Errorf("%w: unexpected multi-get result", ErrStoreUnavailable)
		}
		return Credential{AccessToken: vals[0], RefreshToken: vals[1]}, nil
	}

	access, _, err := s.kv.Get(ctx, s.opts.AccessKey)
	if err != nil {
		return Credential{}, wrapStoreErr(err)
	}
	refresh, _, err := s.kv.Get(ctx, s.opts.RefreshKey)
	if err != nil {
		return Credential{}, wrapStoreErr(err)
	}
	return Credential{AccessToken: access, RefreshToken: refresh}, nil
}

// IsAuthenticated reports whether an access token is stored. It does not check the
// token's expiry or signature.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	token, err := s.AccessToken(ctx)
	return err == nil && token != ""
}

// ClearTokens removes both tokens and cancels any pending refresh. It is idempotent.
func (s *Store) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.cancelTimer()
	return s.deleteLocked(ctx)
}

// ClearTokensIf clears the pair only when epoch is still current. It reports whether
// anything was cleared.
func (s *Store) ClearTokensIf(ctx context.Context, epoch uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false, nil
	}
	s.epoch++
	s.cancelTimer()
	return true, s.deleteLocked(ctx)
}

func (s *Store) deleteLocked(ctx context.Context) error {
	if b, ok := s.kv.(BatchKV); ok {
		return wrapStoreErr(b.DeleteMulti(ctx, s.opts.AccessKey, s.opts.RefreshKey))
	}
	errAccess := s.kv.Delete(ctx, s.opts.AccessKey)
	errRefresh := s.kv.Delete(ctx, s.opts.RefreshKey)
	return wrapStoreErr(errors.Join(errAccess, errRefresh))
}

// Epoch returns the write counter. It changes on every successful or failed write and
// on every clear.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Resume arms the proactive timer for a credential that was already persisted when the
// process started. It is a no-op when no access token is stored.
func (s *Store) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, err := s.readLocked(ctx)
	if err != nil {
		return err
	}
	if cred.AccessToken == "" {
		return nil
	}
	s.schedule(s.refreshDelay(cred.AccessToken))
	return nil
}

// NextRefresh returns when the pending proactive refresh is due.
func (s *Store) NextRefresh() (time.Time, bool) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.nextAt, true
}

// Close cancels the pending refresh and stops scheduling new ones. Stored tokens are
// left in place.
func (s *Store) Close() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.closed = true
	s.stopLocked()
}

func (s *Store) refreshDelay(accessToken string) time.Duration {
	delay := s.opts.RefreshInterval
	if s.opts.ExpiryLead <= 0 || s.opts.Expiry == nil {
		return delay
	}
	exp, ok := s.opts.Expiry(accessToken)
	if !ok {
		return delay
	}
	until := exp.Sub(s.opts.Clock.Now()) - s.opts.ExpiryLead
	if until < 0 {
		until = 0
	}
	if until < delay {
		delay = until
	}
	return delay
}

func (s *Store) schedule(delay time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.stopLocked()
	if s.closed {
		return
	}

	s.timerGen++
	gen := s.timerGen
	s.nextAt = s.opts.Clock.Now().Add(delay)
	s.timer = s.opts.Clock.AfterFunc(delay, func() { s.fire(gen) })
	s.opts.Logger.Debug("goSession: proactive refresh scheduled", slog.Duration("delay", delay))
}

func (s *Store) cancelTimer() {
	s.timerMu.Lock()
	s.stopLocked()
	s.timerMu.Unlock()
}

func (s *Store) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// A callback that already left the runtime timer must see a stale generation.
	s.timerGen++
	s.nextAt = time.Time{}
}

func (s *Store) fire(gen uint64) {
	s.timerMu.Lock()
	if gen != s.timerGen || s.closed {
		s.timerMu.Unlock()
		return
	}
	s.timer = nil
	s.nextAt = time.Time{}
	handler := s.onDue
	s.timerMu.Unlock()

	if handler != nil {
		handler()
	}
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
