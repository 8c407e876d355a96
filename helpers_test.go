package goSession

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/internal/fakebackend"
	"github.com/MrEthical07/goSession/session"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu sync.Mutex
	ts []Transition
}

func (r *recorder) add(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ts = append(r.ts, t)
}

func (r *recorder) all() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transition, len(r.ts))
	copy(out, r.ts)
	return out
}

func (r *recorder) types() []EventType {
	ts := r.all()
	out := make([]EventType, len(ts))
	for i, t := range ts {
		out[i] = t.Type
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, n int) []EventType {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.ts) >= n
	}, 2*time.Second, 5*time.Millisecond, "got %v", r.types())
	return r.types()
}

type harness struct {
	o       *Orchestrator
	backend *fakebackend.Backend
	srv     *httptest.Server
	clock   *session.ManualClock
	kv      *session.MemoryKV
	rec     *recorder
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, configure ...func(*Builder)) *harness {
	t.Helper()

	backend := fakebackend.New()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	h := &harness{
		backend: backend,
		srv:     srv,
		clock:   session.NewManualClock(testStart),
		kv:      session.NewMemoryKV(),
		rec:     &recorder{},
	}

	b := New().
		WithBaseURL(srv.URL).
		WithKV(h.kv).
		WithClock(h.clock).
		WithLogger(discardLogger()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true)
	for _, fn := range configure {
		fn(b)
	}

	o, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	o.Subscribe(h.rec.add)
	h.o = o
	return h
}

// login signs in as Jane and waits for both transitions.
func (h *harness) login(t *testing.T) {
	t.Helper()
	before := len(h.rec.all())
	_, err := h.o.Login(t.Context(), fakebackend.Jane.Email, fakebackend.Password)
	require.NoError(t, err)
	h.rec.waitFor(t, before+2)
}

func (h *harness) stored(t *testing.T) session.Credential {
	t.Helper()
	cred, err := h.o.store.Credential(t.Context())
	require.NoError(t, err)
	return cred
}
