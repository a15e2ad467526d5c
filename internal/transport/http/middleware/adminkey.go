package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"resume-agent/internal/transport/http/response"
)

const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards operator endpoints. The configured key may be plain text
// (compared in constant time) or a bcrypt hash. An empty configured key
// disables the endpoints entirely.
func AdminKey(configuredKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if configuredKey == "" {
			response.Error(c, 404, response.CodeSessionNotFound, "not found")
			c.Abort()
			return
		}

		presented := strings.TrimSpace(c.GetHeader(AdminKeyHeader))
		if presented == "" || !keyMatches(configuredKey, presented) {
			response.Error(c, 401, response.CodeUnauthorized, "invalid admin key")
			c.Abort()
			return
		}
		c.Next()
	}
}

func keyMatches(configured, presented string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
