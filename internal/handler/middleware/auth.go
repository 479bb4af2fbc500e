package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medcycle/internal/domain"
	"github.com/gin-gonic/gin"
)

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (domain.Identity, *domain.Claims, error)
}

// Authenticate requires a valid bearer access token. Inactive accounts pass
// through; access decisions for them are refused and audited downstream.
func Authenticate(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
			return
		}

		id, claims, err := resolver.ResolveIdentity(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(identityKey, id)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
