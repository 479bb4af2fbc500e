package middleware

import (
	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	identityKey  = "identity"
	claimsKey    = "claims"
	requestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)

// Actor returns the identity set by Authenticate.
func Actor(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// TokenClaims returns the access token claims set by Authenticate.
func TokenClaims(c *gin.Context) (*domain.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.Claims)
	return claims, ok
}

func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
