package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/server/auth"
)

// ownerKey is the gin context key the auth middleware stores the verified
// owner under.
const ownerKey = "owner"

// authMiddleware verifies the bearer token on every request and injects the
// owner it was issued to into the request context. Requests without a valid
// token are rejected with 401.
func authMiddleware(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthHeaderName)

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		owner, err := auth.OwnerFromToken(token, secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ownerKey, owner)
		c.Next()
	}
}

// ownerFromContext returns the owner the auth middleware stored.
func ownerFromContext(c *gin.Context) string {
	return c.GetString(ownerKey)
}
