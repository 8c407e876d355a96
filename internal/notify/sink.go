package notify

import "context"

// Sink receives emitted values.
type Sink[T any] interface {
	Emit(ctx context.Context, v T)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc[T any] func(ctx context.Context, v T)

func (f SinkFunc[T]) Emit(ctx context.Context, v T) { f(ctx, v) }

// NoOpSink drops values.
type NoOpSink[T any] struct{}

func (NoOpSink[T]) Emit(context.Context, T) {}

// ChannelSink writes values into a buffered channel.
type ChannelSink[T any] struct {
	values chan T
}

func NewChannelSink[T any](buffer int) *ChannelSink[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink[T]{
		values: make(chan T, buffer),
	}
}

func (s *ChannelSink[T]) Emit(ctx context.Context, v T) {
	select {
	case s.values <- v:
	case <-ctx.Done():
	}
}

func (s *ChannelSink[T]) Values() <-chan T {
	return s.values
}
