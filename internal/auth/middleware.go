package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studybuddy/backend/pkg/token"
)

// AuthMiddleware requires a valid Bearer session token and sets the
// userID in the request context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No token, authorization denied"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Malformed authorization header"})
			return
		}

		claims, err := token.Parse(parts[1], token.PurposeSession)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is not valid"})
			return
		}

		userID, err := token.UserID(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token is not valid"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
