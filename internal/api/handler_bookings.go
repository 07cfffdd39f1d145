package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/mw"
)

type createBookingRequest struct {
	BusID      string `json:"busId" binding:"required"`
	SeatNumber int    `json:"seatNumber" binding:"required"`
}

type waitlistRequest struct {
	BusID string `json:"busId" binding:"required"`
}

// CreateBooking handles POST /api/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "busId and seatNumber are required")
		return
	}

	b, err := h.bookings.Create(c.Request.Context(), mw.UserID(c), req.BusID, req.SeatNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// MyBookings handles GET /api/bookings/mybookings.
func (h *Handler) MyBookings(c *gin.Context) {
	bookings, err := h.bookings.MyBookings(c.Request.Context(), mw.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// CancelBooking handles DELETE /api/bookings/:id.
func (h *Handler) CancelBooking(c *gin.Context) {
	b, err := h.bookings.Cancel(c.Request.Context(), mw.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Booking cancelled", "booking": b})
}

// BoardingPass handles GET /api/bookings/:id/qr.
func (h *Handler) BoardingPass(c *gin.Context) {
	png, err := h.bookings.BoardingPass(c.Request.Context(), mw.UserID(c), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// JoinWaitingList handles POST /api/bookings/waitlist.
func (h *Handler) JoinWaitingList(c *gin.Context) {
	var req waitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "busId is required")
		return
	}

	entry, err := h.bookings.JoinWaitingList(c.Request.Context(), mw.UserID(c), req.BusID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Added to waiting list", "entry": entry})
}
