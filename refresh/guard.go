package refresh

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Guard is a single-flight gate for one kind of refresh. The zero value is ready to use.
//
// Guard must not be copied after first use.
type Guard[T any] struct {
	group    singleflight.Group
	inFlight atomic.Bool
	calls    atomic.Uint64
	shared   atomic.Uint64
}

// Do runs fn unless a call is already in flight, in which case it waits for that call.
// shared reports whether the result was delivered to more than one caller.
//
// fn receives a context that keeps ctx's values but not its cancellation. If ctx ends
// before the call settles, Do returns ctx.Err() and the call continues for the others.
// A panic in fn is returned to every waiter as an error and leaves the guard idle.
func (g *Guard[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	detached := context.WithoutCancel(ctx)
	ch := g.group.DoChan(flightKey, func() (v any, err error) {
		g.inFlight.Store(true)
		g.calls.Add(1)
		defer g.inFlight.Store(false)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("refresh panicked: %v", r)
			}
		}()
		return fn(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			g.shared.Add(1)
		}
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// InFlight reports whether a call is currently running.
func (g *Guard[T]) InFlight() bool {
	return g.inFlight.Load()
}

// Stats returns the number of calls actually started and the number of results that
// were delivered to more than one caller.
func (g *Guard[T]) Stats() (calls, shared uint64) {
	return g.calls.Load(), g.shared.Load()
}
