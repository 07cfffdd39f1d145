package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/mw"
)

type markStatusRequest struct {
	Status model.BookingStatus `json:"status" binding:"required"`
}

// Roster handles GET /api/conductor/bus/:id/bookings.
func (h *Handler) Roster(c *gin.Context) {
	roster, err := h.fleet.Roster(c.Request.Context(), mw.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roster)
}

// MarkStatus handles PUT /api/conductor/bookings/:id/status.
func (h *Handler) MarkStatus(c *gin.Context) {
	var req markStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "status is required")
		return
	}

	b, err := h.bookings.MarkStatus(c.Request.Context(), mw.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
