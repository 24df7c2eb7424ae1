package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/zaqqye/exam_session_v1/internal/models"
	"github.com/zaqqye/exam_session_v1/internal/utils"
)

type Claims struct {
	AttemptID string `json:"attempt_id"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// AttemptAuth validates the session token issued by resolveAttempt and loads
// the attempt into the request context. Tokens also ride in the query string
// so the websocket upgrade can authenticate.
func AttemptAuth(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var attempt models.Attempt
		if err := db.Where("id = ?", claims.AttemptID).First(&attempt).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "attempt not found"})
			return
		}

		c.Set("attempt", attempt)
		c.Next()
	}
}

// ProctorAuth gates the monitoring surface behind the shared proctor key.
func ProctorAuth(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if keyHash == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "proctor access not configured"})
			return
		}
		key := c.GetHeader("X-Proctor-Key")
		if key == "" {
			key = c.Query("key")
		}
		if !utils.CheckKey(keyHash, key) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if auth != "" && strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("Bearer "):])
	}
	return c.Query("token")
}
