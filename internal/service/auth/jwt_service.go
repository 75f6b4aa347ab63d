package auth

import (
	"context"
	"time"
)

// JWTService issues and checks operator tokens for the admin API.
type JWTService interface {
	// GenerateToken creates a signed token for the named operator.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken checks the signature, issuer and time claims of a token
	// and returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims describes a validated operator token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
