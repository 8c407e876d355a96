package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGuardCollapsesConcurrentCallers(t *testing.T) {
	var g Guard[string]
	var runs atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	const n = 10
	var wg sync.WaitGroup
	results := make(chan string, n)
	errs := make(chan error, n)

	fn := func(context.Context) (string, error) {
		if runs.Add(1) == 1 {
			close(started)
		}
		<-release
		return "token-2", nil
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, _, err := g.Do(context.Background(), fn)
		results <- v
		errs <- err
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := g.Do(context.Background(), fn)
			results <- v
			errs <- err
		}()
	}

	// Give the followers time to join the flight.
	time.Sleep(50 * time.Millisecond)
	if !g.InFlight() {
		t.Fatal("expected guard in flight")
	}
	close(release)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	for v := range results {
		if v != "token-2" {
			t.Fatalf("unexpected result %q", v)
		}
	}
	if runs.Load() != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", runs.Load())
	}
	if calls, _ := g.Stats(); calls != 1 {
		t.Fatalf("expected 1 started call, got %d", calls)
	}
	if g.InFlight() {
		t.Fatal("expected guard idle after settle")
	}
}

func TestGuardSharesFailure(t *testing.T) {
	var g Guard[int]
	boom := errors.New("refresh rejected")
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	fn := func(context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		return 0, boom
	}

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := g.Do(context.Background(), fn)
			errs <- err
		}()
		if i == 0 {
			<-started
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("expected shared failure, got %v", err)
		}
	}
}

func TestGuardIdleAfterSettle(t *testing.T) {
	var g Guard[int]
	var runs atomic.Int32
	fn := func(context.Context) (int, error) {
		return int(runs.Add(1)), nil
	}

	for i := 1; i <= 3; i++ {
		v, shared, err := g.Do(context.Background(), fn)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if shared {
			t.Fatalf("call %d: sequential call reported shared", i)
		}
		if v != i {
			t.Fatalf("call %d: expected fresh result %d, got %d", i, i, v)
		}
	}
}

func TestGuardReleasesAfterPanic(t *testing.T) {
	var g Guard[int]

	_, _, err := g.Do(context.Background(), func(context.Context) (int, error) {
		panic("backend exploded")
	})
	if err == nil {
		t.Fatal("expected panic surfaced as error")
	}
	if g.InFlight() {
		t.Fatal("guard stuck in flight after panic")
	}

	v, _, err := g.Do(context.Background(), func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected guard usable after panic, got v=%d err=%v", v, err)
	}
}

func TestGuardWaiterCancellationDoesNotAbortFlight(t *testing.T) {
	var g Guard[string]
	release := make(chan struct{})
	started := make(chan struct{})
	var sawCancel atomic.Bool

	fn := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return "ok", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := g.Do(leaderCtx, fn)
		leaderErr <- err
	}()
	<-started

	followerRes := make(chan string, 1)
	go func() {
		v, _, _ := g.Do(context.Background(), fn)
		followerRes <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected leader to stop waiting with context.Canceled, got %v", err)
	}

	close(release)
	if v := <-followerRes; v != "ok" {
		t.Fatalf("expected follower to receive result, got %q", v)
	}
	if sawCancel.Load() {
		t.Fatal("flight observed the leader's cancellation")
	}
}

func TestGuardRejectsDoneContext(t *testing.T) {
	var g Guard[int]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, _, err := g.Do(ctx, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected early cancellation, got err=%v called=%v", err, called)
	}
}
