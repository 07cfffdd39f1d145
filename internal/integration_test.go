package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-bus-backend/config"
	"campus-bus-backend/internal/account"
	"campus-bus-backend/internal/api"
	"campus-bus-backend/internal/booking"
	"campus-bus-backend/internal/fleet"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/metrics"
	"campus-bus-backend/internal/notification"
	"campus-bus-backend/internal/report"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/testdb"
	"campus-bus-backend/internal/window"
)

type sentMail struct {
	to, subject string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject})
	return nil
}

func (m *recordingMailer) subjectsFor(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sent {
		if s.to == to {
			out = append(out, s.subject)
		}
	}
	return out
}

type client struct {
	t      *testing.T
	server *httptest.Server
}

func (c client) call(method, path, token string, body interface{}, out interface{}) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.server.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// TestWaitingListLifecycle books a full trip over HTTP, queues a third
// student, cancels a seat and verifies the queued student is promoted and
// notified.
func TestWaitingListLifecycle(t *testing.T) {
	// --- Test Setup ---
	ist := time.FixedZone("IST", 5*60*60+30*60)
	s := store.NewGormStore(testdb.New(t))
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	eval := window.NewEvaluator(window.FixedClock{T: time.Date(2026, 3, 2, 7, 0, 0, 0, ist)}, ist)

	mailer := &recordingMailer{}
	pool := notification.NewWorkerPool(2, 64, s, mailer, nil, log, m)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Wait()
	})

	tokens := account.NewTokenIssuer("integration-secret", time.Hour)
	bookings := booking.NewService(s, eval, pool, nil, m, log, "LNMIIT Bus")
	t.Cleanup(bookings.Drain)

	handler := api.NewHandler(api.Services{
		Store: s,
		Accounts: account.NewService(s, tokens, config.AuthConfig{
			EmailDomain: "lnmiit.ac.in",
			AdminEmail:  "admin@lnmiit.ac.in",
		}, log),
		Bookings: bookings,
		Fleet:    fleet.NewRegistry(s, eval, nil, bookings, log),
		Reports:  report.NewGenerator(s, ist),
		Window:   eval,
		Log:      log,
	})
	server := httptest.NewServer(api.NewRouter(handler, api.RouterOptions{
		Server:   config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 5},
		Tokens:   tokens,
		Metrics:  m,
		Gatherer: reg,
	}))
	defer server.Close()
	c := client{t: t, server: server}

	register := func(name, email string) string {
		var out struct {
			Token string `json:"token"`
		}
		status := c.call(http.MethodPost, "/api/auth/register", "", map[string]string{
			"name": name, "email": email, "password": "secret", "confirmPassword": "secret",
		}, &out)
		require.Equal(t, http.StatusCreated, status)
		return out.Token
	}
	adminToken := register("Office", "admin@lnmiit.ac.in")
	ashaToken := register("Asha", "asha@lnmiit.ac.in")
	vikToken := register("Vik", "vik@lnmiit.ac.in")
	neelToken := register("Neel", "neel@lnmiit.ac.in")

	var trip struct {
		ID string `json:"id"`
	}
	require.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/buses", adminToken, map[string]interface{}{
		"busNumber": "RJ14-1234", "route": "Campus, Jaipur", "driver": "Mohan",
		"totalSeats": 2, "departureTime": "9:00 AM", "arrivalTime": "10:00 AM",
	}, &trip))

	// --- Phase 1: the trip fills up ---
	var ashaBooking struct {
		ID string `json:"id"`
	}
	t.Run("Phase 1: Trip Fills Up", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/bookings", ashaToken, map[string]interface{}{"busId": trip.ID, "seatNumber": 2}, &ashaBooking))
		assert.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/bookings", vikToken, map[string]interface{}{"busId": trip.ID, "seatNumber": 1}, nil))
		assert.Equal(t, http.StatusConflict, c.call(http.MethodPost, "/api/bookings", neelToken, map[string]interface{}{"busId": trip.ID, "seatNumber": 1}, nil))

		var listing []struct {
			ID          string `json:"id"`
			BookedSeats int    `json:"bookedSeats"`
		}
		require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/api/buses", neelToken, nil, &listing))
		require.Len(t, listing, 1)
		assert.Equal(t, 2, listing[0].BookedSeats)
	})

	// --- Phase 2: a third student queues ---
	t.Run("Phase 2: Student Joins Waiting List", func(t *testing.T) {
		assert.Equal(t, http.StatusCreated, c.call(http.MethodPost, "/api/bookings/waitlist", neelToken, map[string]string{"busId": trip.ID}, nil))
		assert.Equal(t, http.StatusConflict, c.call(http.MethodPost, "/api/bookings/waitlist", neelToken, map[string]string{"busId": trip.ID}, nil))

		var stats struct {
			TotalWaiting int `json:"totalWaiting"`
		}
		require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/api/admin/stats", adminToken, nil, &stats))
		assert.Equal(t, 1, stats.TotalWaiting)
	})

	// --- Phase 3: a cancellation promotes the queued student ---
	t.Run("Phase 3: Cancellation Promotes Waiting Student", func(t *testing.T) {
		require.Equal(t, http.StatusOK, c.call(http.MethodDelete, "/api/bookings/"+ashaBooking.ID, ashaToken, nil, nil))
		bookings.Drain()

		var mine []struct {
			SeatNumber int    `json:"seatNumber"`
			Status     string `json:"status"`
		}
		require.Equal(t, http.StatusOK, c.call(http.MethodGet, "/api/bookings/mybookings", neelToken, nil, &mine))
		require.Len(t, mine, 1)
		assert.Equal(t, 2, mine[0].SeatNumber, "promoted into the cancelled seat")
		assert.Equal(t, "confirmed", mine[0].Status)

		n, err := s.CountWaiting(context.Background(), []string{trip.ID})
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		assert.Eventually(t, func() bool {
			return len(mailer.subjectsFor("neel@lnmiit.ac.in")) == 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.Contains(t, mailer.subjectsFor("neel@lnmiit.ac.in")[0], "waiting list")
		assert.Eventually(t, func() bool {
			return len(mailer.subjectsFor("asha@lnmiit.ac.in")) == 2
		}, 2*time.Second, 10*time.Millisecond, "confirmation and cancellation emails")
	})
}
