package goSession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal/notify"
)

type subscriber struct {
	id uint64
	fn func(Transition)
}

// stateMachine holds the AuthState and publishes transitions in apply order.
//
// State is updated synchronously; subscribers are called on the dispatcher goroutine.
type stateMachine struct {
	mu    sync.RWMutex
	state AuthState

	dispatcher *notify.Dispatcher[Transition]

	subsMu sync.RWMutex
	subs   []subscriber
	nextID uint64

	sink   TransitionSink
	now    func() time.Time
	logger *slog.Logger
}

func newStateMachine(cfg NotifyConfig, sink TransitionSink, now func() time.Time, logger *slog.Logger) *stateMachine {
	m := &stateMachine{
		state:  InitialState(),
		sink:   sink,
		now:    now,
		logger: logger,
	}
	m.dispatcher = notify.NewDispatcher[Transition](notify.Config{
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, notify.SinkFunc[Transition](m.fanOut))
	return m
}

func (m *stateMachine) apply(ctx context.Context, ev Event) Transition {
	return m.applyWith(ctx, func(AuthState) Event { return ev })
}

// applyWith builds the event from the current state and applies it in one step.
//
// The transition is queued while mu is held so that dispatch order is apply order.
// Emit does not wait for subscribers, so a subscriber may call back into the machine.
func (m *stateMachine) applyWith(ctx context.Context, build func(AuthState) Event) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	ev := build(prev)
	next := Reduce(prev, ev)
	m.state = next

	var typ EventType
	if ev != nil {
		typ = ev.EventType()
	}
	t := Transition{
		Event:     ev,
		Type:      typ,
		Prev:      prev,
		Next:      next,
		Timestamp: m.now(),
	}
	m.dispatcher.Emit(ctx, t)
	return t
}

func (m *stateMachine) snapshot() AuthState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.state
	s.User = cloneUser(s.User)
	return s
}

func (m *stateMachine) subscribe(fn func(Transition)) func() {
	m.subsMu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (m *stateMachine) fanOut(ctx context.Context, t Transition) {
	m.subsMu.RLock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subsMu.RUnlock()

	for _, s := range subs {
		m.call(s.fn, t)
	}
	if m.sink != nil {
		m.sink.Emit(ctx, t)
	}
}

func (m *stateMachine) call(fn func(Transition), t Transition) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("goSession: subscriber panicked",
				slog.String("event", string(t.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	fn(t)
}

func (m *stateMachine) close() {
	m.dispatcher.Close()
}

func (m *stateMachine) dropped() uint64 {
	return m.dispatcher.Dropped()
}
