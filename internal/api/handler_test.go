package api

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	student := ts.student(t, "asha@lnmiit.ac.in")
	assert.Equal(t, "student", student.Role)
	assert.NotEmpty(t, student.Token)

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"loginId": "asha@lnmiit.ac.in", "password": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"loginId": "asha@lnmiit.ac.in", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var e errorBody
	decode(t, w, &e)
	assert.Equal(t, "unauthorized", e.Code)
	assert.NotEmpty(t, e.RequestID)

	w = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Again", "email": "asha@lnmiit.ac.in", "password": "x", "confirmPassword": "x",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ravi", "phone": "9876543210", "role": "conductor", "conductorPasscode": "guess", "password": "x", "confirmPassword": "x",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, "admin", ts.admin(t).Role)
	assert.Equal(t, "conductor", ts.conductor(t, "9876543210").Role)
}

func TestRoleGuards(t *testing.T) {
	ts := newTestServer(t)
	student := ts.student(t, "asha@lnmiit.ac.in")

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/buses", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/buses", student.Token, map[string]string{}).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/admin/stats", student.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/buses/mybus", student.Token, nil).Code)

	admin := ts.admin(t)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPost, "/api/bookings", admin.Token, map[string]interface{}{"busId": "x", "seatNumber": 1}).Code)
}

func TestBookingEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	asha := ts.student(t, "asha@lnmiit.ac.in")
	vik := ts.student(t, "vik@lnmiit.ac.in")

	tripID := ts.createTrip(t, admin.Token, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"totalSeats": 4, "departureTime": "9:00 AM", "arrivalTime": "10:00 AM",
	})

	w := ts.do(t, http.MethodPost, "/api/bookings", asha.Token, map[string]interface{}{"busId": tripID, "seatNumber": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var booked struct {
		ID         string `json:"id"`
		SeatNumber int    `json:"seatNumber"`
		Status     string `json:"status"`
	}
	decode(t, w, &booked)
	assert.Equal(t, 3, booked.SeatNumber)
	assert.Equal(t, "confirmed", booked.Status)

	w = ts.do(t, http.MethodPost, "/api/bookings", vik.Token, map[string]interface{}{"busId": tripID, "seatNumber": 3})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPost, "/api/bookings", vik.Token, map[string]interface{}{"busId": tripID, "seatNumber": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, http.MethodPost, "/api/bookings", vik.Token, map[string]interface{}{"busId": "missing", "seatNumber": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodPost, "/api/bookings/waitlist", vik.Token, map[string]string{"busId": tripID})
	assert.Equal(t, http.StatusConflict, w.Code, "trip is not full")

	w = ts.do(t, http.MethodGet, "/api/buses/"+tripID, asha.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Seats []struct {
			Number int    `json:"number"`
			Status string `json:"status"`
		} `json:"seats"`
		AvailableCount int `json:"availableCount"`
		BookedCount    int `json:"bookedCount"`
	}
	decode(t, w, &detail)
	assert.Len(t, detail.Seats, 4)
	assert.Equal(t, 1, detail.BookedCount)
	assert.Equal(t, 3, detail.AvailableCount)

	w = ts.do(t, http.MethodGet, "/api/bookings/mybookings", asha.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), booked.ID)

	w = ts.do(t, http.MethodGet, "/api/bookings/"+booked.ID+"/qr", asha.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodDelete, "/api/bookings/"+booked.ID, vik.Token, nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/bookings/"+booked.ID, asha.Token, nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do(t, http.MethodDelete, "/api/bookings/"+booked.ID, asha.Token, nil).Code)

	w = ts.do(t, http.MethodGet, "/api/buses/"+tripID, asha.Token, nil)
	decode(t, w, &detail)
	assert.Equal(t, 0, detail.BookedCount, "cache is flushed by the cancellation")
}

func TestTripAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	ravi := ts.conductor(t, "9876543210")

	tripID := ts.createTrip(t, admin.Token, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"departureTime": "9:00 AM", "arrivalTime": "10:00 AM", "conductor": ravi.ID,
	})

	w := ts.do(t, http.MethodPost, "/api/buses", admin.Token, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"departureTime": "9:00 AM", "arrivalTime": "10:00 AM",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = ts.do(t, http.MethodPost, "/api/buses", admin.Token, map[string]interface{}{
		"busNumber": "RJ14-9", "route": "r", "driver": "d", "departureTime": "25:00", "arrivalTime": "10:00 AM",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/buses/mybus", ravi.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), tripID)

	w = ts.do(t, http.MethodPut, "/api/buses/"+tripID, admin.Token, map[string]interface{}{"route": "Campus, Sanganer"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conductorId":"`+ravi.ID+`"`, "absent conductor key keeps the assignment")

	w = ts.do(t, http.MethodPut, "/api/buses/"+tripID, admin.Token, map[string]interface{}{"conductor": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conductorId":null`)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/buses/mybus", ravi.Token, nil).Code)

	w = ts.do(t, http.MethodGet, "/api/admin/buses/all", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Campus, Sanganer")

	w = ts.do(t, http.MethodGet, "/api/admin/conductors", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "9876543210")

	w = ts.do(t, http.MethodPost, "/api/admin/buses/"+tripID+"/promote", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"booking":null`)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/buses/fleet/RJ14-1234", admin.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/buses/fleet/RJ14-1234", admin.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/buses/"+tripID, admin.Token, nil).Code)
}

func TestConductorEndpoints(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)
	ravi := ts.conductor(t, "9876543210")
	other := ts.conductor(t, "9123456789")
	asha := ts.student(t, "asha@lnmiit.ac.in")

	tripID := ts.createTrip(t, admin.Token, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"departureTime": "8:05 AM", "arrivalTime": "9:00 AM", "conductor": ravi.ID,
	})
	w := ts.do(t, http.MethodPost, "/api/bookings", asha.Token, map[string]interface{}{"busId": tripID, "seatNumber": 1})
	require.Equal(t, http.StatusCreated, w.Code)
	var booked struct {
		ID string `json:"id"`
	}
	decode(t, w, &booked)

	w = ts.do(t, http.MethodGet, "/api/conductor/bus/"+tripID+"/bookings", ravi.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), booked.ID)
	assert.Contains(t, w.Body.String(), "asha@lnmiit.ac.in")
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/api/conductor/bus/"+tripID+"/bookings", other.Token, nil).Code)

	path := "/api/conductor/bookings/" + booked.ID + "/status"
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, path, ravi.Token, map[string]string{"status": "cancelled"}).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodPut, path, other.Token, map[string]string{"status": "attended"}).Code)

	w = ts.do(t, http.MethodPut, path, ravi.Token, map[string]string{"status": "attended"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"attended"`)
}

func TestAdminStatsAndReport(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.admin(t)

	w := ts.do(t, http.MethodGet, "/api/admin/report?type=csv", admin.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	asha := ts.student(t, "asha@lnmiit.ac.in")
	tripID := ts.createTrip(t, admin.Token, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"departureTime": "9:00 AM", "arrivalTime": "10:00 AM", "totalSeats": 10,
	})
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/bookings", asha.Token, map[string]interface{}{"busId": tripID, "seatNumber": 2}).Code)

	w = ts.do(t, http.MethodGet, "/api/admin/stats", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalBuses":1,"totalBookings":1,"totalWaiting":0,"totalCapacity":10,"occupancyRate":10}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/admin/report?type=csv", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "bookings_report.csv")
	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "asha@lnmiit.ac.in", records[1][2])
	assert.Equal(t, time.Now().In(ist).Format("2006-01-02"), records[1][7])

	w = ts.do(t, http.MethodGet, "/api/admin/report", admin.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestSubscriptionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	asha := ts.student(t, "asha@lnmiit.ac.in")
	endpoint := "https://push.example.com/send/abc?x=1"

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/subscriptions", asha.Token, map[string]string{}).Code)

	w := ts.do(t, http.MethodPut, "/api/subscriptions", asha.Token, map[string]string{"endpoint": endpoint, "p256dh": "key", "auth": "auth"})
	assert.Equal(t, http.StatusCreated, w.Code)

	query := "/api/subscriptions?endpoint=https%3A%2F%2Fpush.example.com%2Fsend%2Fabc%3Fx%3D1"
	w = ts.do(t, http.MethodGet, query, asha.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), endpoint)

	w = ts.do(t, http.MethodDelete, "/api/subscriptions", asha.Token, map[string]string{"endpoint": endpoint})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, query, asha.Token, nil).Code)
}

func TestPublicEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/api/vapid_public_key", "", nil).Code)

	w = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "campus_bus_http_requests_total")
}
