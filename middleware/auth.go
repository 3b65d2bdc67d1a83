package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sketchmon/arena/cache"
	"github.com/sketchmon/arena/config"
)

const AccountIDKey = "account_id"

// BearerToken extracts the JWT from the Authorization header. EventSource
// clients cannot set headers, so a "token" query parameter is accepted when
// allowQuery is true.
func BearerToken(c *gin.Context, allowQuery bool) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// ValidateSession parses tokenStr and checks that its session is still live
// in the cache and belongs to the same account.
func ValidateSession(ctx context.Context, tokenStr string, sec config.SecurityConfig, c cache.Cache) (*Claims, bool) {
	claims, err := ParseToken(tokenStr, sec.JWTSecret)
	if err != nil {
		return nil, false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	owner, err := c.Get(cacheCtx, cache.SessionKey(tokenStr))
	if err != nil || owner != strconv.FormatInt(claims.AccountID, 10) {
		return nil, false
	}
	return claims, true
}

// Auth validates the Bearer JWT token and checks the session cache.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return auth(sec, c, false)
}

// StreamAuth is Auth for SSE endpoints; it also reads ?token=.
func StreamAuth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return auth(sec, c, true)
}

func auth(sec config.SecurityConfig, c cache.Cache, allowQuery bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tokenStr := BearerToken(ctx, allowQuery)
		if tokenStr == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if _, err := ParseToken(tokenStr, sec.JWTSecret); err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		claims, ok := ValidateSession(ctx.Request.Context(), tokenStr, sec, c)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}

		ctx.Set(AccountIDKey, claims.AccountID)
		ctx.Next()
	}
}

// GetAccountID retrieves the authenticated account ID from the Gin context.
func GetAccountID(c *gin.Context) int64 {
	if v, exists := c.Get(AccountIDKey); exists {
		return v.(int64)
	}
	return 0
}
