package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/pkg/apperr"
	"bingo-bot/internal/pkg/lock"
)

func failure(code, reason string) gin.H {
	return gin.H{"status": "failed", "code": code, "reason": reason}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its reason code. Unclassified errors are
// logged and reported generically.
func writeError(c *gin.Context, err error) {
	if errors.Is(err, lock.ErrLockTimeout) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, failure("busy", "another request is in progress, try again"))
		return
	}

	appErr := apperr.As(err)
	if appErr.Kind == apperr.KindInternal {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Int64("user_id", currentUser(c)).Msg("Request failed")
	}
	c.AbortWithStatusJSON(statusFor(appErr.Kind), failure(appErr.Code, appErr.Message))
}

func badRequest(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, failure(string(apperr.KindValidation), reason))
}
