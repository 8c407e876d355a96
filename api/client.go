package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	PathLogin     = "/api/token"
	PathVerify2FA = "/api/auth/verify-2fa"
	PathRefresh   = "/api/auth/refresh"
	PathLogout    = "/api/auth/logout"
	PathMe        = "/api/auth/me"
)

// Client calls the authentication backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a [Client] for the backend at baseURL. A nil httpClient uses
// http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("base URL must be http or https")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

// WithHTTPClient returns a copy of c sending through h.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	cp := *c
	cp.http = h
	return &cp
}

// BaseURL returns the backend root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL resolves target against the backend root. Absolute URLs are returned as-is.
func (c *Client) ResolveURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return c.baseURL + target
}

// Login submits username and password as a form.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathLogin, strings.NewReader(form.Encode()))
	if err != nil {
		return LoginResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out loginResponse
	if err := c.do(req, &out); err != nil {
		return LoginResult{}, err
	}
	if out.TwoFactorRequired {
		return LoginResult{TwoFactorRequired: true}, nil
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return LoginResult{}, fmt.Errorf("%w: login response without tokens", ErrMalformedResponse)
	}
	return LoginResult{Tokens: TokenPair{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		TokenType:    out.TokenType,
	}}, nil
}

// VerifyTwoFactor exchanges the OTP for a token pair.
func (c *Client) VerifyTwoFactor(ctx context.Context, email, otp string) (TokenPair, error) {
	return c.postTokens(ctx, PathVerify2FA, verifyRequest{Email: email, OTP: otp})
}

// Refresh rotates the token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	return c.postTokens(ctx, PathRefresh, refreshRequest{RefreshToken: refreshToken})
}

// Logout asks the backend to revoke the pair. The response body is ignored.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	req, err := c.jsonRequest(ctx, PathLogout, logoutRequest{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Me fetches the current user. The client's transport is expected to attach the
// bearer credential.
func (c *Client) Me(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+PathMe, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	var out userEnvelope
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return nil, fmt.Errorf("%w: user response without data", ErrMalformedResponse)
	}
	return out.Data, nil
}

func (c *Client) postTokens(ctx context.Context, path string, body any) (TokenPair, error) {
	req, err := c.jsonRequest(ctx, path, body)
	if err != nil {
		return TokenPair{}, err
	}

	var out tokenEnvelope
	if err := c.do(req, &out); err != nil {
		return TokenPair{}, err
	}
	if !out.Success {
		return TokenPair{}, &StatusError{StatusCode: http.StatusOK, Message: out.Message}
	}
	if out.Data.AccessToken == "" || out.Data.RefreshToken == "" {
		return TokenPair{}, fmt.Errorf("%w: token envelope without tokens", ErrMalformedResponse)
	}
	return out.Data, nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx body into out (nil discards it).
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ErrorFromResponse(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
