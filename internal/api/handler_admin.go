package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/report"
)

// Stats handles GET /api/admin/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.fleet.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Conductors handles GET /api/admin/conductors.
func (h *Handler) Conductors(c *gin.Context) {
	conductors, err := h.fleet.Conductors(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conductors)
}

// Schedules handles GET /api/admin/buses/all.
func (h *Handler) Schedules(c *gin.Context) {
	trips, err := h.fleet.ListSchedules(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// Promote handles POST /api/admin/buses/:id/promote.
func (h *Handler) Promote(c *gin.Context) {
	b, err := h.bookings.Promote(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if b == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No one to promote", "booking": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Waiting list promoted", "booking": b})
}

// Report handles GET /api/admin/report. ?type=csv selects CSV, otherwise PDF.
func (h *Handler) Report(c *gin.Context) {
	rows, err := h.reports.Rows(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if c.Query("type") == "csv" {
		data, err := report.CSV(rows)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="bookings_report.csv"`)
		c.Data(http.StatusOK, "text/csv", data)
		return
	}

	data, err := report.PDF(rows, h.window.Now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bookings_report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// Health handles GET /api/health.
func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
