package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"campus-bus-backend/internal/fleet"
	"campus-bus-backend/internal/mw"
)

type tripRequest struct {
	BusNumber     *string         `json:"busNumber"`
	Route         *string         `json:"route"`
	Driver        *string         `json:"driver"`
	TotalSeats    *int            `json:"totalSeats"`
	DepartureTime *string         `json:"departureTime"`
	ArrivalTime   *string         `json:"arrivalTime"`
	Conductor     json.RawMessage `json:"conductor"`
}

// conductor decodes the conductor field. set is false when the key is absent;
// a JSON null or empty string clears the assignment.
func (r tripRequest) conductor() (id *string, set bool, err error) {
	if r.Conductor == nil {
		return nil, false, nil
	}
	if bytes.Equal(bytes.TrimSpace(r.Conductor), []byte("null")) {
		return nil, true, nil
	}
	var v string
	if err := json.Unmarshal(r.Conductor, &v); err != nil {
		return nil, true, err
	}
	if v == "" {
		return nil, true, nil
	}
	return &v, true, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ListTrips handles GET /api/buses.
func (h *Handler) ListTrips(c *gin.Context) {
	trips, err := h.fleet.ListUpcoming(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// GetTrip handles GET /api/buses/:id.
func (h *Handler) GetTrip(c *gin.Context) {
	detail, err := h.fleet.TripWithSeats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// MyBus handles GET /api/buses/mybus.
func (h *Handler) MyBus(c *gin.Context) {
	trip, err := h.fleet.ConductorTrip(c.Request.Context(), mw.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// CreateTrip handles POST /api/buses.
func (h *Handler) CreateTrip(c *gin.Context) {
	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}
	conductorID, _, err := req.conductor()
	if err != nil {
		h.badRequest(c, "conductor must be a user id")
		return
	}

	in := fleet.TripInput{
		BusNumber:     deref(req.BusNumber),
		Route:         deref(req.Route),
		Driver:        deref(req.Driver),
		DepartureTime: deref(req.DepartureTime),
		ArrivalTime:   deref(req.ArrivalTime),
		ConductorID:   conductorID,
	}
	if req.TotalSeats != nil {
		in.TotalSeats = *req.TotalSeats
	}

	trip, err := h.fleet.Create(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// UpdateTrip handles PUT /api/buses/:id.
func (h *Handler) UpdateTrip(c *gin.Context) {
	var req tripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request")
		return
	}
	conductorID, conductorSet, err := req.conductor()
	if err != nil {
		h.badRequest(c, "conductor must be a user id")
		return
	}

	trip, err := h.fleet.Update(c.Request.Context(), c.Param("id"), fleet.TripPatch{
		BusNumber:     req.BusNumber,
		Route:         req.Route,
		Driver:        req.Driver,
		TotalSeats:    req.TotalSeats,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		ConductorSet:  conductorSet,
		ConductorID:   conductorID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// DeleteTrip handles DELETE /api/buses/:id.
func (h *Handler) DeleteTrip(c *gin.Context) {
	if err := h.fleet.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus removed"})
}

// DeleteAsset handles DELETE /api/buses/fleet/:busNumber.
func (h *Handler) DeleteAsset(c *gin.Context) {
	busNumber := c.Param("busNumber")
	n, err := h.fleet.DeleteAsset(c.Request.Context(), busNumber)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus " + busNumber + " removed from fleet", "deletedTrips": n})
}
