package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator validates RS256 JWT tokens against a static public key.
type JWTValidator struct {
	publicKey *rsa.PublicKey
}

// NewJWTValidator creates a new JWT validator from PEM string
func NewJWTValidator(publicKeyPEM string) (*JWTValidator, error) {
	if publicKeyPEM == "" {
		return nil, fmt.Errorf("public key PEM is required")
	}

	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block containing public key")
	}

	publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	rsaPublicKey, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an RSA key")
	}

	return &JWTValidator{
		publicKey: rsaPublicKey,
	}, nil
}

// NewJWTValidatorFromFile creates a new JWT validator from a key file
func NewJWTValidatorFromFile(publicKeyPath string) (*JWTValidator, error) {
	publicKeyPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}

	return NewJWTValidator(string(publicKeyPEM))
}

// Validate validates a JWT token and returns the user ID
func (v *JWTValidator) Validate(ctx context.Context, token string) (userID string, err error) {
	if token == "" {
		return "", fmt.Errorf("empty token")
	}

	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	if len(token) < 10 {
		return "", fmt.Errorf("token too short")
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))

	if err != nil {
		return "", fmt.Errorf("failed to parse JWT token: %w", err)
	}
	if !parsedToken.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("failed to extract claims from token")
	}

	if err := v.validateClaims(claims); err != nil {
		return "", fmt.Errorf("claim validation failed: %w", err)
	}

	userID, ok = claims["sub"].(string)
	if !ok {
		userID, ok = claims["user_id"].(string)
		if !ok {
			return "", fmt.Errorf("user ID not found in token claims")
		}
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user ID is empty")
	}

	return userID, nil
}

// validateClaims validates the registered claims beyond the signature.
func (v *JWTValidator) validateClaims(claims jwt.MapClaims) error {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return fmt.Errorf("expiration claim (exp) is missing")
	}
	expTime := time.Unix(int64(exp), 0)
	if time.Now().After(expTime) {
		return fmt.Errorf("token has expired at %v", expTime)
	}

	// Reject tokens issued in the future, with tolerance for clock skew.
	if iat, ok := claims["iat"].(float64); ok {
		iatTime := time.Unix(int64(iat), 0)
		if time.Now().Before(iatTime.Add(-5 * time.Minute)) {
			return fmt.Errorf("token issued in the future: %v", iatTime)
		}
	}

	if nbf, ok := claims["nbf"].(float64); ok {
		nbfTime := time.Unix(int64(nbf), 0)
		if time.Now().Before(nbfTime) {
			return fmt.Errorf("token not valid until %v", nbfTime)
		}
	}

	return nil
}
