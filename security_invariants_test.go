package goSession

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goSession/internal/fakebackend"
)

func TestTokensNeverReachLogsOrSinks(t *testing.T) {
	var logs, sink syncBuffer
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"}, &logs)
	require.NoError(t, err)

	h := newHarness(t, func(b *Builder) {
		b.WithLogger(logger).WithSink(NewJSONWriterSink(&sink))
	})

	h.login(t)
	seen := []string{h.stored(t).AccessToken, h.stored(t).RefreshToken}

	h.backend.ExpireAccessTokens()
	require.NoError(t, h.o.MakeAuthenticatedRequest(t.Context(), fakebackend.PathResource, RequestOptions{}, nil))
	seen = append(seen, h.stored(t).AccessToken, h.stored(t).RefreshToken)

	h.backend.FailLogout(true)
	h.o.Logout(t.Context())
	require.NoError(t, h.o.Close())

	for _, secret := range seen {
		require.NotEmpty(t, secret)
		assert.NotContains(t, logs.String(), secret)
		assert.NotContains(t, sink.String(), secret)
	}
	assert.NotContains(t, logs.String(), fakebackend.Password)
}

func TestLoggerRedactsCredentialAttributes(t *testing.T) {
	var buf syncBuffer
	logger, err := NewLogger(LogConfig{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("debugging", slog.String("refresh_token", "r-123"), slog.String("Authorization", "Bearer a-456"), slog.String("path", "/api/loans"))

	out := buf.String()
	assert.NotContains(t, out, "r-123")
	assert.NotContains(t, out, "a-456")
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "/api/loans")
}

func TestNewLoggerRejectsUnknownSettings(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud"}, nil)
	assert.Error(t, err)
	_, err = NewLogger(LogConfig{Format: "xml"}, nil)
	assert.Error(t, err)
}

func TestInputMessageHidesValidatorInternals(t *testing.T) {
	h := newHarness(t)

	_, err := h.o.Login(t.Context(), "jane@example.com", "")
	require.Error(t, err)

	msg := h.o.State().Error
	assert.Equal(t, "password is required", msg)
	assert.False(t, strings.Contains(msg, "LoginInput"))
}
