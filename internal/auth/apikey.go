package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const headerName = "X-API-Key"

// APIKeyMiddleware gates requests on the X-API-Key header. An empty
// configured key disables the check entirely, which is the default for
// single-tenant deployments behind a private network.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}
