package fakebackend

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/MrEthical07/goSession/api"
	"github.com/MrEthical07/goSession/jwt"
)

const (
	// Password is the password of every seeded account.
	Password = "correct-horse"
	// OTP is the verification code of the seeded two-factor account.
	OTP = "123456"

	PathResource = "/api/resource"
	PathEcho     = "/api/echo"
)

// Seeded accounts.
var (
	Jane = api.User{ID: 1, Email: "jane@example.com", FullName: "Jane Doe", Role: "admin", IsActive: true}
	Mfa  = api.User{ID: 2, Email: "mfa@example.com", FullName: "Max Factor", Role: "agent", IsActive: true, TwoFactorEnabled: true}
)

type account struct {
	user     api.User
	password string
	otp      string
}

// Backend is a fake authentication server. It implements http.Handler.
type Backend struct {
	echo   *echo.Echo
	issuer *jwt.Issuer

	mu       sync.Mutex
	accounts map[string]account
	access   map[string]string // access token -> email
	refresh  map[string]string // refresh token -> email
	gate     chan struct{}

	refreshCalls atomic.Int64
	logoutCalls  atomic.Int64
	unauthorized atomic.Int64
	failRefresh  atomic.Bool
	failLogout   atomic.Bool
	failMe       atomic.Bool
}

// New returns a Backend seeded with [Jane] and [Mfa].
func New() *Backend {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessTTL:     30 * time.Minute,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "fakebackend",
	})
	if err != nil {
		panic(err)
	}

	b := &Backend{
		issuer:   issuer,
		accounts: make(map[string]account),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
	}
	b.AddUser(Jane, Password, "")
	b.AddUser(Mfa, Password, OTP)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.POST(api.PathLogin, b.login)
	e.POST(api.PathVerify2FA, b.verify)
	e.POST(api.PathRefresh, b.refreshTokens)
	e.POST(api.PathLogout, b.logout)

	authed := e.Group("", b.requireBearer)
	authed.GET(api.PathMe, b.me)
	authed.GET(PathResource, b.resource)
	authed.POST(PathEcho, b.echoBody)

	b.echo = e
	return b
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.echo.ServeHTTP(w, r)
}

// AddUser registers an account. A non-empty otp enables two-factor login.
func (b *Backend) AddUser(u api.User, password, otp string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u.TwoFactorEnabled = otp != ""
	b.accounts[u.Email] = account{user: u, password: password, otp: otp}
}

// ExpireAccessTokens invalidates every issued access token. Refresh tokens stay valid.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]string)
}

// HoldRefresh makes refresh requests wait until the returned function is called.
func (b *Backend) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gate == gate {
				b.gate = nil
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}

func (b *Backend) FailRefresh(fail bool) { b.failRefresh.Store(fail) }
func (b *Backend) FailLogout(fail bool)  { b.failLogout.Store(fail) }
func (b *Backend) FailMe(fail bool)      { b.failMe.Store(fail) }

// RefreshCalls counts refresh requests, including rejected ones.
func (b *Backend) RefreshCalls() int64 { return b.refreshCalls.Load() }

func (b *Backend) LogoutCalls() int64 { return b.logoutCalls.Load() }

// Unauthorized counts 401 answers to bearer-authenticated routes.
func (b *Backend) Unauthorized() int64 { return b.unauthorized.Load() }

// ActiveRefreshTokens reports how many refresh tokens are currently valid.
func (b *Backend) ActiveRefreshTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.refresh)
}

// IssuePair mints a valid pair for email without a login, as if persisted earlier.
func (b *Backend) IssuePair(email string) (api.TokenPair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[email]
	if !ok {
		return api.TokenPair{}, echo.ErrNotFound
	}
	return b.issueLocked(acc)
}

func (b *Backend) issueLocked(acc account) (api.TokenPair, error) {
	access, err := b.issuer.Mint(acc.user.Email, acc.user.Role)
	if err != nil {
		return api.TokenPair{}, err
	}
	refresh := uuid.NewString()
	b.access[access] = acc.user.Email
	b.refresh[refresh] = acc.user.Email
	return api.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

type detail struct {
	Detail string `json:"detail"`
}

type envelope struct {
	Success bool           `json:"success"`
	Data    *api.TokenPair `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

func (b *Backend) login(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[username]
	if !ok || acc.password != password {
		return c.JSON(http.StatusUnauthorized, detail{Detail: "Incorrect username or password"})
	}
	if acc.otp != "" {
		return c.JSON(http.StatusOK, map[string]bool{"two_factor_required": true})
	}
	pair, err := b.issueLocked(acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

func (b *Backend) verify(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail{Detail: "Invalid request body"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[req.Email]
	if !ok || acc.otp == "" || acc.otp != req.OTP {
		return c.JSON(http.StatusUnauthorized, detail{Detail: "Invalid verification code"})
	}
	pair, err := b.issueLocked(acc)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: &pair})
}

func (b *Backend) refreshTokens(c echo.Context) error {
	b.refreshCalls.Add(1)

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail{Detail: "Invalid request body"})
	}

	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		}
	}

	if b.failRefresh.Load() {
		return c.JSON(http.StatusUnauthorized, envelope{Message: "Refresh token expired"})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.refresh[req.RefreshToken]
	if !ok {
		return c.JSON(http.StatusUnauthorized, envelope{Message: "Invalid refresh token"})
	}
	delete(b.refresh, req.RefreshToken)
	pair, err := b.issueLocked(b.accounts[email])
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: &pair})
}

func (b *Backend) logout(c echo.Context) error {
	b.logoutCalls.Add(1)
	if b.failLogout.Load() {
		return c.JSON(http.StatusInternalServerError, detail{Detail: "logout unavailable"})
	}

	var req struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, detail{Detail: "Invalid request body"})
	}

	b.mu.Lock()
	delete(b.access, req.AccessToken)
	delete(b.refresh, req.RefreshToken)
	b.mu.Unlock()
	return c.JSON(http.StatusOK, envelope{Success: true, Message: "Logged out"})
}

// requireBearer admits requests whose access token verifies and is still active. The
// account email is stored under "email".
func (b *Backend) requireBearer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return b.reject(c)
		}
		if _, err := b.issuer.Verify(token); err != nil {
			return b.reject(c)
		}

		b.mu.Lock()
		email, active := b.access[token]
		b.mu.Unlock()
		if !active {
			return b.reject(c)
		}
		c.Set("email", email)
		return next(c)
	}
}

func (b *Backend) reject(c echo.Context) error {
	b.unauthorized.Add(1)
	return c.JSON(http.StatusUnauthorized, detail{Detail: "Could not validate credentials"})
}

func (b *Backend) me(c echo.Context) error {
	if b.failMe.Load() {
		return c.JSON(http.StatusInternalServerError, detail{Detail: "user service unavailable"})
	}
	email, _ := c.Get("email").(string)
	b.mu.Lock()
	acc := b.accounts[email]
	b.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{"data": acc.user})
}

func (b *Backend) resource(c echo.Context) error {
	email, _ := c.Get("email").(string)
	return c.JSON(http.StatusOK, map[string]any{
		"owner":      email,
		"request_id": c.Request().Header.Get("X-Request-ID"),
	})
}

// echoBody returns the request body so callers can check it survived a retry.
func (b *Backend) echoBody(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, detail{Detail: "body must be a JSON object"})
	}
	return c.JSON(http.StatusOK, map[string]any{"body": body})
}
