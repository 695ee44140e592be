package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/pkg/auth"
)

const userIDKey = "userID"

// loggerMiddleware writes one access log line per request.
func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int64("user_id", c.GetInt64(userIDKey)).
			Msg("HTTP request")
	}
}

// recoveryMiddleware turns panics into a 500 with the standard error body.
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("path", c.Request.URL.Path).
			Msg("Panic recovered in HTTP handler")
		c.AbortWithStatusJSON(http.StatusInternalServerError, failure("internal_error", "internal error, please try again later"))
	})
}

// authMiddleware accepts "Authorization: Bearer <token>" or ?token=<token>.
func authMiddleware(tokens TokenParser) gin.HandlerFunc {
	const bearer = "Bearer "

	return func(c *gin.Context) {
		token := c.Query("token")
		if header := c.GetHeader("Authorization"); header != "" {
			if !strings.HasPrefix(header, bearer) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, failure("invalid_token", "authorization header must start with Bearer"))
				return
			}
			token = strings.TrimSpace(header[len(bearer):])
		}

		userID, err := tokens.Parse(token)
		if err != nil {
			code, reason := "invalid_token", "invalid token"
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				code, reason = "missing_token", "token is required"
			case errors.Is(err, auth.ErrExpiredToken):
				code, reason = "expired_token", "token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, failure(code, reason))
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}
