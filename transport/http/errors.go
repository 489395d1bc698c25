package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/layer-3/mintbox/core"
)

const msgAuthFailed = "Authentication failed"

// statusFor maps a domain error to the HTTP status and the message shown to clients
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, core.ErrAlreadyLoggedIn):
		return http.StatusBadRequest, "User already logged in"
	case errors.Is(err, core.ErrIdentityNotFound), errors.Is(err, core.ErrInvalidSignature):
		return http.StatusUnauthorized, msgAuthFailed
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized, "Session expired"
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "Resource already exists"
	case errors.Is(err, core.ErrPinning):
		return http.StatusBadGateway, "Failed to upload to IPFS"
	case errors.Is(err, core.ErrMinting):
		return http.StatusBadGateway, "Failed to mint NFT"
	case errors.Is(err, core.ErrSessionStore):
		return http.StatusInternalServerError, "Session store unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	prefix := core.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return "Invalid request"
}

// abortWithError writes the mapped status and message and logs the cause
func abortWithError(c *gin.Context, logger zerolog.Logger, err error) {
	status, msg := statusFor(err)

	var event *zerolog.Event
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	} else {
		event = logger.Debug()
	}
	event.Err(err).Int("status", status).Str("path", c.FullPath()).Msg("request failed")

	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func recoverPanic(logger zerolog.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		logger.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
	}
}
