package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/echothread/internal/auth"
	"github.com/lalith-99/echothread/internal/models"
)

// ContextKeyIdentity holds the caller's models.Identity in gin.Context.
const ContextKeyIdentity = "identity"

// AuthMiddleware rejects requests without a valid Bearer token and stores
// the caller for GetIdentity.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "expected Authorization: Bearer <token>")
			return
		}

		claims, err := auth.ParseToken(token, secret)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextKeyIdentity, claims.Identity())
		c.Next()
	}
}

// bearerToken pulls the token out of "Bearer eyJhbG...". The scheme is
// case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": "unauthorized"})
}

// GetIdentity returns the authenticated caller. Outside AuthMiddleware it
// is the zero Identity, which owns no tenant rows.
func GetIdentity(c *gin.Context) models.Identity {
	val, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return models.Identity{}
	}
	id, _ := val.(models.Identity)
	return id
}
