package goSession

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/MrEthical07/goSession/internal/notify"
)

// TransitionSink receives every applied transition after subscribers have seen it.
//
// Emit runs on the notification goroutine. A slow sink delays later transitions.
type TransitionSink interface {
	Emit(ctx context.Context, t Transition)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Transition) {}

// ChannelSink forwards transitions into a buffered channel. Emit blocks while the
// channel is full.
type ChannelSink struct {
	inner *notify.ChannelSink[Transition]
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{inner: notify.NewChannelSink[Transition](buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, t Transition) {
	s.inner.Emit(ctx, t)
}

func (s *ChannelSink) Transitions() <-chan Transition {
	return s.inner.Values()
}

// JSONWriterSink writes one JSON object per transition, newline separated.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, t Transition) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(t)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// SlogSink logs each transition at info level. The user is reduced to its ID.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(ctx context.Context, t Transition) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("event", string(t.Type)),
		slog.Bool("authenticated", t.Next.IsAuthenticated),
		slog.Bool("loading", t.Next.IsLoading),
		slog.Bool("two_factor_required", t.Next.TwoFactorRequired),
	}
	if t.Next.User != nil {
		attrs = append(attrs, slog.Int64("user_id", t.Next.User.ID))
	}
	if t.Next.Error != "" {
		attrs = append(attrs, slog.String("error", t.Next.Error))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "goSession: transition", attrs...)
}
