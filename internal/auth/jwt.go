package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lalith-99/echothread/internal/models"
)

const issuer = "echothread"

// Claims is the payload the identity provider signs for every caller.
//
// The engine never logs anyone in: tokens arrive already issued, and the
// middleware turns them into a models.Identity. Role is the caller's
// tenant-wide role; "owner" and "admin" act as moderators.
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Role     string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the caller the token stands for.
func (c *Claims) Identity() models.Identity {
	return models.Identity{TenantID: c.TenantID, UserID: c.UserID, Role: c.Role}
}

// GenerateToken signs an HS256 token for id. The server itself only parses
// tokens; this is for tests and local tooling that stand in for the
// identity provider.
func GenerateToken(id models.Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:   id.UserID,
		TenantID: id.TenantID,
		Role:     id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// hmacMethods are the only algorithms ParseToken accepts. Pinning them
// rules out "none" and RSA/HMAC key confusion.
var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// ParseToken verifies signature and expiry and returns the claims. Tokens
// without an expiry, a tenant or a user are rejected.
func ParseToken(tokenString, secret string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods(hmacMethods),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.UserID == uuid.Nil || claims.TenantID == uuid.Nil {
		return nil, fmt.Errorf("parse token: missing user or tenant id")
	}
	return &claims, nil
}
