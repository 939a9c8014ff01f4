package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestExtractTokenFromAuthHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"bearer prefix", "Bearer abc123", "abc123"},
		{"lowercase bearer", "bearer abc123", "abc123"},
		{"no prefix", "abc123", "abc123"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTokenFromAuthHeader(tt.header); got != tt.want {
				t.Errorf("ExtractTokenFromAuthHeader(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestInsecureValidator(t *testing.T) {
	v := InsecureValidator{}

	userID, err := v.Validate(context.Background(), "Bearer user-42")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("userID = %q, want user-42", userID)
	}

	if _, err := v.Validate(context.Background(), ""); err == nil {
		t.Error("expected error for empty token")
	}
}

func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshaling public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(pemBytes)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestJWTValidator_ValidToken(t *testing.T) {
	key, pub := testKeyPair(t)
	v, err := NewJWTValidator(pub)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	userID, err := v.Validate(context.Background(), "Bearer "+token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if userID != "user-7" {
		t.Errorf("userID = %q, want user-7", userID)
	}
}

func TestJWTValidator_ExpiredToken(t *testing.T) {
	key, pub := testKeyPair(t)
	v, err := NewJWTValidator(pub)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestJWTValidator_WrongKeyRejected(t *testing.T) {
	key, _ := testKeyPair(t)
	_, otherPub := testKeyPair(t)
	v, err := NewJWTValidator(otherPub)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), token); err == nil {
		t.Error("expected error for token signed with a different key")
	}
}

func TestJWTValidator_MissingSubjectRejected(t *testing.T) {
	key, pub := testKeyPair(t)
	v, err := NewJWTValidator(pub)
	if err != nil {
		t.Fatalf("NewJWTValidator: %v", err)
	}

	token := signToken(t, key, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := v.Validate(context.Background(), token); err == nil {
		t.Error("expected error for token without a subject")
	}
}

func TestNewJWTValidator_BadKey(t *testing.T) {
	if _, err := NewJWTValidator(""); err == nil {
		t.Error("expected error for empty PEM")
	}
	if _, err := NewJWTValidator("not a pem"); err == nil {
		t.Error("expected error for malformed PEM")
	}
}
