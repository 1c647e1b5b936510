package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"email-gate/internal/service"
)

const relayClaimsKey = "relay_claims"

// RelayAuthMiddleware valida el bearer token del relay y guarda sus claims.
func RelayAuthMiddleware(tokens *service.RelayTokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "relay auth not configured"})
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(header[len("Bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(relayClaimsKey, claims)
		c.Next()
	}
}

// GetRelayClaims obtiene los claims del relay desde el contexto.
func GetRelayClaims(c *gin.Context) (service.RelayClaims, bool) {
	val, ok := c.Get(relayClaimsKey)
	if !ok {
		return service.RelayClaims{}, false
	}
	claims, ok := val.(service.RelayClaims)
	return claims, ok
}
