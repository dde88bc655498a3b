package middleware

import (
	"net/http"
	"strings"
	"time"

	"chatsino/internal/models"
	"chatsino/internal/services"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	KeyClientID        = "client_id"
	KeyUsername        = "username"
	KeyPermissionLevel = "permission_level"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		clientID, _ := claims.ClientID()

		c.Set(KeyClientID, clientID)
		c.Set(KeyUsername, claims.Username)
		c.Set(KeyPermissionLevel, claims.PermissionLevel)

		c.Next()
	}
}

// RequirePermission rejects callers below level. Run it after AuthMiddleware.
func RequirePermission(level models.PermissionLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		have, _ := c.Get(KeyPermissionLevel)
		if p, ok := have.(models.PermissionLevel); !ok || !p.Satisfies(level) {
			c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to do that."})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware counts calls per client and action in Redis.
func RateLimitMiddleware(redisService *services.RedisService, action string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetInt64(KeyClientID)
		if clientID == 0 {
			c.Next()
			return
		}

		allowed, err := redisService.CheckRateLimit(c.Request.Context(), clientID, action, limit, window)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
