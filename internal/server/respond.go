package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	codeInvalidRequest = "request.invalid_body"
	codeUserMismatch   = "auth.user_mismatch"
	codeInternal       = "server.internal"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, svcerr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, svcerr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, svcerr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, svcerr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, svcerr.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	serviceErr, ok := svcerr.As(err)
	if !ok {
		h.logger.Error("unclassified handler error", zap.Error(err), zap.String("path", c.FullPath()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": codeInternal})
		return
	}
	status := statusForError(serviceErr)
	body := gin.H{"error": serviceErr.Message(), "code": serviceErr.Code()}
	if status == http.StatusInternalServerError && serviceErr.Cause() != nil {
		body["details"] = serviceErr.Cause().Error()
	}
	c.JSON(status, body)
}

func respondInvalidBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": codeInvalidRequest})
}

// actingUserID reconciles an optional userId in the request with the token subject.
func actingUserID(c *gin.Context, claimed *int64) (int64, bool) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.missing_subject"})
		return 0, false
	}
	if claimed != nil && *claimed != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "userId does not match the authenticated user", "code": codeUserMismatch})
		return 0, false
	}
	return userID, true
}

// parseID returns 0 for absent or malformed values so the services report them as missing.
func parseID(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || value <= 0 {
		return 0
	}
	return value
}

func parseQueryInt(c *gin.Context, key string, fallback int) int {
	raw, present := c.GetQuery(key)
	if !present || strings.TrimSpace(raw) == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}
