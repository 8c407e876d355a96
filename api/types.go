package api

// TokenPair is an access/refresh token pair issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// LoginResult is the outcome of a password login. When TwoFactorRequired is set,
// Tokens is empty and the caller must complete [Client.VerifyTwoFactor].
type LoginResult struct {
	Tokens            TokenPair
	TwoFactorRequired bool
}

// User is the authenticated user as returned by GET /api/auth/me.
type User struct {
	ID               int64  `json:"id"`
	Email            string `json:"email"`
	FullName         string `json:"full_name"`
	Role             string `json:"role"`
	IsActive         bool   `json:"is_active"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
}

type loginResponse struct {
	AccessToken       string `json:"access_token"`
	RefreshToken      string `json:"refresh_token"`
	TokenType         string `json:"token_type"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

type tokenEnvelope struct {
	Success bool      `json:"success"`
	Data    TokenPair `json:"data"`
	Message string    `json:"message,omitempty"`
}

type userEnvelope struct {
	Data *User `json:"data"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
