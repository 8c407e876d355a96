package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrRefreshFailed is returned by [Transport.RoundTrip] when the access token could not
// be renewed. The session is unrecoverable at that point.
var ErrRefreshFailed = errors.New("token refresh failed")

// TokenSource supplies access tokens to a [Transport].
type TokenSource interface {
	// AccessToken returns the current token, or "" when none is stored.
	AccessToken(ctx context.Context) (string, error)
	// Refresh returns a usable token after stale was rejected. stale is "" when no
	// token was stored.
	Refresh(ctx context.Context, stale string) (string, error)
}

// Hooks observe the transport. Nil fields are skipped.
type Hooks struct {
	// OnUnauthorized runs for every 401 response, before any refresh.
	OnUnauthorized func(req *http.Request)
	// OnRetry runs when a request is replayed after a refresh.
	OnRetry func(req *http.Request)
}

// Transport is an [http.RoundTripper] attaching a bearer token and handling one
// refresh-and-retry cycle per request.
type Transport struct {
	Base   http.RoundTripper
	Tokens TokenSource
	Hooks  Hooks
	Logger *slog.Logger
}

// New returns a [Transport] sending through base (http.DefaultTransport when nil).
func New(base http.RoundTripper, tokens TokenSource, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{Base: base, Tokens: tokens, Logger: logger}
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	token, err := t.Tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	id := requestID(ctx)
	refreshed := false
	if token == "" {
		token, err = t.refresh(ctx, "")
		if err != nil {
			return nil, err
		}
		refreshed = true
	}

	resp, err := t.send(req, id, token, getBody)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if t.Hooks.OnUnauthorized != nil {
		t.Hooks.OnUnauthorized(req)
	}
	if refreshed {
		return resp, nil
	}

	drain(resp)
	token, err = t.refresh(ctx, token)
	if err != nil {
		return nil, err
	}

	t.Logger.Debug("goSession: retrying request after refresh",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("request_id", id),
	)
	if t.Hooks.OnRetry != nil {
		t.Hooks.OnRetry(req)
	}
	resp, err = t.send(req, id, token, getBody)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && t.Hooks.OnUnauthorized != nil {
		t.Hooks.OnUnauthorized(req)
	}
	return resp, err
}

func (t *Transport) refresh(ctx context.Context, stale string) (string, error) {
	token, err := t.Tokens.Refresh(ctx, stale)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return "", err
		}
		if !errors.Is(err, ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}
		return "", err
	}
	if token == "" {
		return "", fmt.Errorf("%w: token source returned no token", ErrRefreshFailed)
	}
	return token, nil
}

func (t *Transport) send(orig *http.Request, id, token string, getBody func() (io.ReadCloser, error)) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, err
		}
		req.Body = body
		req.GetBody = getBody
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, id)
	}
	return t.Base.RoundTrip(req)
}

// replayableBody returns a body factory for req, buffering the body when it cannot be
// re-read. It returns nil for requests without a body.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}

	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
