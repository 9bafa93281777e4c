package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ShenYT0/msn-web/internal/domain/entity"
	"github.com/ShenYT0/msn-web/internal/domain/repository"
	"github.com/ShenYT0/msn-web/pkg/auth"
)

const (
	// ContextUserKey is the gin context key holding the authenticated user.
	ContextUserKey = "current_user"
)

// SessionAuth validates the session token and loads the account. The
// token comes from the session cookie, with an Authorization bearer
// header as fallback for non-browser clients.
func SessionAuth(jwtService *auth.JWTService, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
			return
		}

		claims, err := jwtService.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, please log in again", "error_type": "token_invalid"})
			return
		}

		user, err := userRepo.GetByID(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account no longer exists", "error_type": "token_invalid"})
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// MaintenanceAuth guards the bulk maintenance endpoints with a static
// bearer token. An empty configured token disables the endpoints.
func MaintenanceAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found", "error_type": "not_found"})
			return
		}
		if bearerToken(c) != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required", "error_type": "unauthorized"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the account loaded by SessionAuth.
func CurrentUser(c *gin.Context) *entity.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*entity.User)
	if !ok {
		return nil
	}
	return user
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	return bearerToken(c)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
