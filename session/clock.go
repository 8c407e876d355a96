package session

import (
	"sort"
	"sync"
	"time"
)

// Task is a cancellable scheduled callback.
type Task interface {
	// Stop cancels the task. It reports false if the task already fired or was stopped.
	Stop() bool
}

// Clock schedules callbacks. [SystemClock] is used in production; [ManualClock] lets
// tests decide when time passes.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Task
}

// SystemClock is the wall-clock [Clock] backed by time.AfterFunc.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// ManualClock is a [Clock] whose time only moves when Advance is called. Due callbacks
// run synchronously on the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu    sync.Mutex
	now   time.Time
	seq   uint64
	tasks map[uint64]*manualTask
}

type manualTask struct {
	clock *ManualClock
	id    uint64
	at    time.Time
	fn    func()
}

// NewManualClock returns a [ManualClock] starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:   start,
		tasks: make(map[uint64]*manualTask),
	}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTask{clock: c, id: c.seq, at: c.now.Add(d), fn: f}
	c.tasks[t.id] = t
	return t
}

// Pending returns the number of scheduled tasks that have neither fired nor been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}

// Advance moves the clock forward by d and runs every task that became due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	due := make([]*manualTask, 0, len(c.tasks))
	for id, t := range c.tasks {
		if !t.at.After(now) {
			due = append(due, t)
			delete(c.tasks, id)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].id < due[j].id
		}
		return due[i].at.Before(due[j].at)
	})
	for _, t := range due {
		t.fn()
	}
}

func (t *manualTask) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if _, ok := t.clock.tasks[t.id]; !ok {
		return false
	}
	delete(t.clock.tasks, t.id)
	return true
}
