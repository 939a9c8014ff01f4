package auth

import (
	"context"
	"fmt"
	"strings"
)

// Validator validates an access token and returns the authenticated
// user ID.
type Validator interface {
	Validate(ctx context.Context, token string) (userID string, err error)
}

// InsecureValidator accepts any non-empty token and uses it as the user
// ID. Development and local testing only.
type InsecureValidator struct{}

// Validate treats the token itself as the user identity.
func (InsecureValidator) Validate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

// ExtractTokenFromAuthHeader extracts the token from an Authorization header
func ExtractTokenFromAuthHeader(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	// Handle "Bearer <token>" format
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}

	// If no Bearer prefix, assume the entire header is the token
	return authHeader
}
