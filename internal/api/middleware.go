package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// apiKeyAuth generalizes OSPay's single-merchant-role APIKeyAuthMiddleware
// (pkg/api/orders.go) to this system's requester/solver/challenger roles.
// A role with no keys configured is left open, so the API is usable
// unconfigured in local/demo deployments.
func apiKeyAuth(role string, keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header", "details": role + " key required"})
			return
		}
		for _, k := range keys {
			if k == key {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
	}
}
