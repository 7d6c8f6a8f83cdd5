package integration

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testKeyID = "tripflow-test-key"

// TestClaims describes the caller a test token speaks for. Audience
// overrides the issuer's audience when set.
type TestClaims struct {
	SubjectID string
	Email     string
	Roles     []string
	Audience  string
}

type tripClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// tokenIssuer signs RS256 tokens and publishes its public key on a JWKS
// endpoint, standing in for the identity provider.
type tokenIssuer struct {
	key      *rsa.PrivateKey
	jwks     *httptest.Server
	issuer   string
	audience string
}

func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	keySet, err := json.Marshal(map[string]any{"keys": []map[string]string{{
		"kid": testKeyID,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}}})
	if err != nil {
		t.Fatalf("marshal JWKS: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(keySet)
	}))
	t.Cleanup(srv.Close)

	return &tokenIssuer{
		key:      key,
		jwks:     srv,
		issuer:   "https://auth.test.tripflow.dev",
		audience: "tripflow-api-test",
	}
}

// GenerateToken signs a token valid for the next hour.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now, now.Add(time.Hour))
}

// GenerateExpiredToken signs a token that expired an hour ago, well past
// the verifier's leeway.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(claims, now.Add(-2*time.Hour), now.Add(-time.Hour))
}

func (ti *tokenIssuer) sign(claims TestClaims, issuedAt, expiresAt time.Time) string {
	audience := ti.audience
	if claims.Audience != "" {
		audience = claims.Audience
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, tripClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   claims.SubjectID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: claims.Email,
		Roles: claims.Roles,
	})
	token.Header["kid"] = testKeyID

	signed, err := token.SignedString(ti.key)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// JWKSURL is the endpoint serving the issuer's public key.
func (ti *tokenIssuer) JWKSURL() string {
	return ti.jwks.URL
}

// Issuer is the iss claim the issuer stamps.
func (ti *tokenIssuer) Issuer() string {
	return ti.issuer
}

// Audience is the default aud claim.
func (ti *tokenIssuer) Audience() string {
	return ti.audience
}
