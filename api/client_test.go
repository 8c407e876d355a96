package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)
	return c
}

func TestLoginSendsFormAndReturnsTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathLogin, r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "jane@example.com", r.PostForm.Get("username"))
		assert.Equal(t, "hunter2", r.PostForm.Get("password"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "a1", "refresh_token": "r1", "token_type": "bearer",
		})
	})

	res, err := c.Login(context.Background(), "jane@example.com", "hunter2")
	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.Equal(t, TokenPair{AccessToken: "a1", RefreshToken: "r1", TokenType: "bearer"}, res.Tokens)
}

func TestLoginTwoFactorRequired(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"two_factor_required": true}`))
	})

	res, err := c.Login(context.Background(), "jane@example.com", "hunter2")
	require.NoError(t, err)
	assert.True(t, res.TwoFactorRequired)
	assert.Empty(t, res.Tokens.AccessToken)
}

func TestLoginRejectedUsesDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail": "Incorrect email or password"}`))
	})

	_, err := c.Login(context.Background(), "jane@example.com", "wrong")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Incorrect email or password", se.Message)
	assert.True(t, se.Unauthorized())
}

func TestRefreshEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathRefresh, r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r1", body["refresh_token"])
		_, _ = w.Write([]byte(`{"success": true, "data": {"access_token": "a2", "refresh_token": "r2"}}`))
	})

	pair, err := c.Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", pair.AccessToken)
	assert.Equal(t, "r2", pair.RefreshToken)
}

func TestEnvelopeSuccessFalse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "Invalid OTP"}`))
	})

	_, err := c.VerifyTwoFactor(context.Background(), "jane@example.com", "000000")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Invalid OTP", se.Message)
}

func TestVerifyTwoFactorSendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathVerify2FA, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, verifyRequest{Email: "jane@example.com", OTP: "123456"}, body)
		_, _ = w.Write([]byte(`{"success": true, "data": {"access_token": "a", "refresh_token": "r"}}`))
	})

	pair, err := c.VerifyTwoFactor(context.Background(), "jane@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "a", pair.AccessToken)
}

func TestValidationDetailList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": [{"loc": ["body", "otp"], "msg": "field required"}]}`))
	})

	_, err := c.VerifyTwoFactor(context.Background(), "jane@example.com", "")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "field required", se.Message)
}

func TestErrorWithoutBodyFallsBackToStatusText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Logout(context.Background(), "a", "r")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), se.Message)
}

func TestMeDecodesUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"data": {"id": 42, "email": "jane@example.com", "full_name": "Jane Doe",
			"role": "loan_officer", "is_active": true, "two_factor_enabled": true}}`))
	})

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &User{
		ID: 42, Email: "jane@example.com", FullName: "Jane Doe",
		Role: "loan_officer", IsActive: true, TwoFactorEnabled: true,
	}, u)
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	_, err := c.Refresh(context.Background(), "r")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil)
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "r")
	assert.ErrorIs(t, err, ErrTransport)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", nil)
	assert.Error(t, err)

	c, err := NewClient("https://api.example.com/", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api/loans", c.ResolveURL("api/loans"))
	assert.Equal(t, "https://other.example.com/x", c.ResolveURL("https://other.example.com/x"))
}
