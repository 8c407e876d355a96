package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func TestNewIssuerValidatesConfig(t *testing.T) {
	_, priv := newEdKeys(t)
	bad := []Config{
		{AccessTTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("s")},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256},
		{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("short")},
		{AccessTTL: time.Minute, SigningMethod: "rs256", PrivateKey: priv},
		{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("s"), Leeway: time.Hour},
	}
	for i, cfg := range bad {
		if _, err := NewIssuer(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestIssuerMintVerifyAndInspect(t *testing.T) {
	_, priv := newEdKeys(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss, err := NewIssuer(Config{
		AccessTTL:     30 * time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "loans-api",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	iss = iss.WithClock(func() time.Time { return now })

	token, err := iss.Mint("42", "loan_officer")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "42" || claims.Role != "loan_officer" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	exp, ok := ExpiresAt(token)
	if !ok {
		t.Fatal("expected exp to be readable")
	}
	if want := now.Add(30 * time.Minute); !exp.Equal(want) {
		t.Fatalf("expected exp %v, got %v", want, exp)
	}
}

func TestIssuerRejectsForeignAndExpiredTokens(t *testing.T) {
	_, priv := newEdKeys(t)
	iss, err := NewIssuer(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, Issuer: "a"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	hs := gjwt.NewWithClaims(gjwt.SigningMethodHS256, AccessClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "a",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	wrongAlg, _ := hs.SignedString([]byte("secret-secret-secret-secret"))
	if _, err := iss.Verify(wrongAlg); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}

	expired, err := iss.MintWithTTL("1", "", -time.Minute)
	if err != nil {
		t.Fatalf("mint expired: %v", err)
	}
	if _, err := iss.Verify(expired); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
	// Inspection still reads it: the client uses exp to schedule, not to authorize.
	if _, ok := ExpiresAt(expired); !ok {
		t.Fatal("expected expired token to be inspectable")
	}

	other, _ := NewIssuer(Config{AccessTTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: priv, Issuer: "b"})
	foreign, _ := other.Mint("1", "")
	if _, err := iss.Verify(foreign); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
}

func TestIssuerHS256(t *testing.T) {
	iss, err := NewIssuer(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := iss.Mint("7", "admin")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := iss.Verify(token); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestExpiresAtOpaqueAndMalformed(t *testing.T) {
	for _, token := range []string{"", "opaque-refresh-token", "a.b", "not.a.jwt", "eyJhbGciOiJub25lIn0.eyJzdWIiOiIxIn0."} {
		if _, ok := ExpiresAt(token); ok {
			t.Fatalf("expected no expiry for %q", token)
		}
	}
}

// FuzzInspect exercises the unverified decoder with arbitrary input.
// Goal: no panics; a nil error always comes with claims.
func FuzzInspect(f *testing.F) {
	iss, err := NewIssuer(Config{AccessTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("fuzz-secret")})
	if err != nil {
		f.Fatal(err)
	}
	valid, err := iss.Mint("1", "member")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJFZERTQSJ9.eyJ1aWQiOiJ0ZXN0In0.invalid")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := Inspect(input)
		if err != nil {
			return
		}
		if claims == nil {
			t.Fatal("Inspect returned nil claims without error")
		}
	})
}
