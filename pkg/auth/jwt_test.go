package auth

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

const (
	testIssuer   = "https://issuer.example"
	testAudience = "settlement-switch"
)

func newJWKSServer(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()
	set := keySet{Keys: []jsonWebKey{{
		Kid: kid,
		Kty: "RSA",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return signed
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	srv := newJWKSServer(t, &key.PublicKey, "k1")
	defer srv.Close()

	v := NewJWTValidator(srv.URL, testIssuer, testAudience)

	claims, err := v.ValidateToken(signToken(t, key, "k1", jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "ops",
		"roles": []string{RoleAdmin},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}))
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	got := CapabilityFromClaims(claims)
	if got.Subject != "ops" {
		t.Errorf("expected subject ops, got %q", got.Subject)
	}
	if !got.Has(RoleAdmin) {
		t.Error("expected the admin role to be granted")
	}
}

func TestJWTValidator_RejectsBadTokens(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	srv := newJWKSServer(t, &key.PublicKey, "k1")
	defer srv.Close()

	v := NewJWTValidator(srv.URL, testIssuer, testAudience)

	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"wrong audience", jwt.MapClaims{
			"iss": testIssuer, "aud": "another-service", "sub": "ops",
			"exp": time.Now().Add(time.Hour).Unix(),
		}},
		{"wrong issuer", jwt.MapClaims{
			"iss": "https://rogue.example", "aud": testAudience, "sub": "ops",
			"exp": time.Now().Add(time.Hour).Unix(),
		}},
		{"expired", jwt.MapClaims{
			"iss": testIssuer, "aud": testAudience, "sub": "ops",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}},
		{"missing expiry", jwt.MapClaims{
			"iss": testIssuer, "aud": testAudience, "sub": "ops",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.ValidateToken(signToken(t, key, "k1", tt.claims)); err == nil {
				t.Error("expected validation to fail")
			}
		})
	}

	if _, err := v.ValidateToken(signToken(t, key, "unknown-kid", jwt.MapClaims{
		"iss": testIssuer, "aud": testAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})); err == nil {
		t.Error("expected an unknown kid to fail")
	}
}
