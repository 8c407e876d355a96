package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used by an [Issuer].
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over Ed25519.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256.
	MethodHS256 SigningMethod = "hs256"
)

// Config configures an [Issuer]. PrivateKey is the HMAC secret for HS256 or a raw
// 64-byte Ed25519 private key.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	Issuer        string
	Leeway        time.Duration
}

// Issuer mints and verifies access tokens for the fake backend. It is safe for
// concurrent use.
type Issuer struct {
	config Config
	method jwt.SigningMethod
	sign   any
	check  any
	now    func() time.Time
}

var (
	errTTL    = errors.New("jwt: access TTL must be > 0")
	errLeeway = errors.New("jwt: leeway must be within [0, 2m]")
	errKey    = errors.New("jwt: invalid signing key")
	errMethod = errors.New("jwt: unsupported signing method")
)

func NewIssuer(cfg Config) (*Issuer, error) {
	switch {
	case cfg.AccessTTL <= 0:
		return nil, errTTL
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return nil, errLeeway
	}

	iss := &Issuer{config: cfg, now: time.Now}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errKey
		}
		iss.method = jwt.SigningMethodHS256
		iss.sign, iss.check = cfg.PrivateKey, cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PrivateKey) != ed25519.PrivateKeySize {
			return nil, errKey
		}
		priv := ed25519.PrivateKey(cfg.PrivateKey)
		iss.method = jwt.SigningMethodEdDSA
		iss.sign, iss.check = priv, priv.Public()
	default:
		return nil, errMethod
	}
	return iss, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// Mint signs an access token for subject with the configured TTL.
func (i *Issuer) Mint(subject, role string) (string, error) {
	return i.MintWithTTL(subject, role, i.config.AccessTTL)
}

// MintWithTTL signs an access token for subject that expires after ttl. A non-positive
// ttl yields an already expired token. Every token carries a fresh jti, so two tokens
// minted in the same second still differ.
func (i *Issuer) MintWithTTL(subject, role string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := AccessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(i.method, claims).SignedString(i.sign)
}

// Verify checks the signature, algorithm, issuer and expiry of token.
func (i *Issuer) Verify(token string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
		jwt.WithLeeway(i.config.Leeway),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}

	claims := &AccessClaims{}
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.check, nil
	}); err != nil {
		return nil, fmt.Errorf("verify access token: %w", err)
	}
	return claims, nil
}
