package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/mw"
)

// respondError maps a service error to its HTTP status and writes the JSON
// error envelope.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, "internal_error", "internal server error"

	var (
		notFound     *domain.NotFoundError
		validation   *domain.ValidationError
		conflict     *domain.ConflictError
		unauthorized *domain.UnauthorizedError
		forbidden    *domain.ForbiddenError
		internal     *domain.InternalError
	)
	switch {
	case errors.As(err, &notFound):
		status, code, msg = http.StatusNotFound, "not_found", notFound.Error()
	case errors.As(err, &validation):
		status, code, msg = http.StatusBadRequest, "validation_error", validation.Error()
	case errors.As(err, &conflict):
		status, code, msg = http.StatusConflict, "conflict", conflict.Error()
	case errors.As(err, &unauthorized):
		status, code, msg = http.StatusUnauthorized, "unauthorized", unauthorized.Error()
	case errors.As(err, &forbidden):
		status, code, msg = http.StatusForbidden, "forbidden", forbidden.Error()
	case errors.As(err, &internal):
		msg = internal.Message
	}

	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "request_id", mw.GetRequestID(c), "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code, "request_id": mw.GetRequestID(c)})
}

// badRequest reports a malformed request body or parameter.
func (h *Handler) badRequest(c *gin.Context, msg string) {
	h.respondError(c, domain.NewValidationError("", msg))
}
