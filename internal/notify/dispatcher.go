package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
//
// With DropIfFull, BufferSize bounds the number of values waiting for the sink and
// anything beyond it is dropped. Without it the queue grows as needed and BufferSize
// is only the initial capacity.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher asynchronously forwards values to a sink, one at a time and in emit order.
//
// Emit never waits for the sink, so a sink may emit back into its own dispatcher.
type Dispatcher[T any] struct {
	cfg       Config
	sink      Sink[T]
	mu        sync.Mutex
	queue     []T
	closed    bool
	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	delivered atomic.Uint64
	closeOnce sync.Once
}

func NewDispatcher[T any](cfg Config, sink Sink[T]) *Dispatcher[T] {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink[T]{}
	}

	d := &Dispatcher[T]{
		cfg:   cfg,
		sink:  sink,
		queue: make([]T, 0, cfg.BufferSize),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher[T]) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

// drain delivers batches until the queue is empty. Values emitted by the sink while a
// batch is in progress land in the next batch.
func (d *Dispatcher[T]) drain() {
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, v := range batch {
			d.sink.Emit(context.Background(), v)
			d.delivered.Add(1)
		}
	}
}

// Emit queues v without blocking. With DropIfFull, v is dropped when BufferSize values
// are already waiting. Emit after Close is a no-op.
func (d *Dispatcher[T]) Emit(_ context.Context, v T) {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.cfg.DropIfFull && len(d.queue) >= d.cfg.BufferSize {
		d.mu.Unlock()
		d.dropped.Add(1)
		return
	}
	d.queue = append(d.queue, v)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close stops accepting values, delivers what is queued and waits for the sink. It must
// not be called from the sink.
func (d *Dispatcher[T]) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher[T]) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher[T]) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
