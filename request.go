package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/goSession/api"
)

// RequestOptions describes a request for [Orchestrator.MakeAuthenticatedRequest].
//
// Set at most one of Body and JSON. JSON is marshalled and sent with
// Content-Type application/json.
type RequestOptions struct {
	Method string
	Header http.Header
	Body   []byte
	JSON   any
}

// MakeAuthenticatedRequest sends a request to target (absolute, or relative to the
// backend URL) with the current access token and decodes a 2xx JSON body into out
// (nil discards it, an empty body leaves it untouched).
//
// A 401 triggers one refresh and one retry with the same body. If the refresh fails
// the session is logged out and the error wraps [ErrRefreshFailed]. A 401 on the retry
// returns [ErrUnauthorized]; other non-2xx statuses return [ErrRequestFailed]. Both
// wrap an [*api.StatusError].
func (o *Orchestrator) MakeAuthenticatedRequest(ctx context.Context, target string, opts RequestOptions, out any) error {
	if err := o.usable(); err != nil {
		return err
	}

	req, err := o.newRequest(ctx, target, opts)
	if err != nil {
		return err
	}
	resp, err := o.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := api.ErrorFromResponse(resp)
		if se.Unauthorized() {
			return fmt.Errorf("%w: %w", ErrUnauthorized, se)
		}
		return fmt.Errorf("%w: %w", ErrRequestFailed, se)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	// An empty body, as with 204, leaves out untouched.
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// Do sends req through the authenticated transport. Like http.Client.Do, a non-2xx
// status is not an error. A failed refresh logs the session out before the error is
// returned.
func (o *Orchestrator) Do(req *http.Request) (*http.Response, error) {
	if err := o.usable(); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := o.http.Do(req)
	o.metrics.Observe(MetricRequestLatency, time.Since(start))
	if err == nil {
		return resp, nil
	}

	if errors.Is(err, ErrRefreshFailed) {
		o.forceLogout(req.Context(), err)
		return nil, err
	}
	if ctxErr := req.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return nil, err
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
}

func (o *Orchestrator) newRequest(ctx context.Context, target string, opts RequestOptions) (*http.Request, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if opts.Body != nil && opts.JSON != nil {
		return nil, fmt.Errorf("%w: both Body and JSON set", ErrInvalidInput)
	}

	var body io.Reader
	contentType := ""
	switch {
	case opts.JSON != nil:
		raw, err := json.Marshal(opts.JSON)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	case opts.Body != nil:
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.backend.ResolveURL(target), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	return req, nil
}
