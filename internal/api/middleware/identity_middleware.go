package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserIDHeader carries the caller's resolved identity. Authentication itself
// happens upstream (gateway / bot bridge); this service trusts the header.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// IdentityMiddleware extracts the resolved user id from the request header
// and stores it on the context. Requests without a parseable id are rejected.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			c.Abort()
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user identity"})
			c.Abort()
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// GetUserID returns the user id set by IdentityMiddleware
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
