package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fabiofalopes/ann-tfc/internal/agreement"
	"github.com/fabiofalopes/ann-tfc/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrProjectNotFound),
		errors.Is(err, service.ErrChatRoomNotFound),
		errors.Is(err, service.ErrMessageNotFound),
		errors.Is(err, service.ErrAnnotationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserAlreadyExists),
		errors.Is(err, service.ErrAlreadyAssigned),
		errors.Is(err, service.ErrAlreadyAnnotated):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, agreement.ErrRoomHasNoMessages),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrNotAssigned),
		service.IsImportError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error body. Server errors are logged and
// replaced by msg so internals do not leak to clients.
func respondError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// paramID parses a numeric path parameter, writing a 400 when it is invalid.
func paramID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
