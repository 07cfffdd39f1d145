package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"campus-bus-backend/config"
	"campus-bus-backend/internal/account"
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

func init() {
	gin.SetMode(gin.TestMode)
}

var ist = time.FixedZone("IST", 5*60*60+30*60)

type testServer struct {
	router http.Handler
	store  store.Store
}

// newTestServer wires the real services over an in-memory database with the
// clock fixed at 08:00 IST.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewGormStore(testdb.New(t))
	log := logger.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	eval := window.NewEvaluator(window.FixedClock{T: time.Date(2026, 3, 2, 8, 0, 0, 0, ist)}, ist)

	tokens := account.NewTokenIssuer("test-secret", time.Hour)
	pool := notification.NewWorkerPool(1, 256, s, nil, nil, log, m)
	bookings := booking.NewService(s, eval, pool, nil, m, log, "LNMIIT Bus")
	t.Cleanup(bookings.Drain)

	h := NewHandler(Services{
		Store: s,
		Accounts: account.NewService(s, tokens, config.AuthConfig{
			EmailDomain:       "lnmiit.ac.in",
			AdminEmail:        "admin@lnmiit.ac.in",
			ConductorPasscode: "STAFF-123",
		}, log),
		Bookings: bookings,
		Fleet:    fleet.NewRegistry(s, eval, nil, bookings, log),
		Reports:  report.NewGenerator(s, ist),
		Window:   eval,
		Log:      log,
	})
	router := NewRouter(h, RouterOptions{
		Server:   config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 1},
		Tokens:   tokens,
		Metrics:  m,
		Gatherer: reg,
	})
	return &testServer{router: router, store: s}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type authBody struct {
	ID    string `json:"_id"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

func (ts *testServer) register(t *testing.T, body map[string]string) authBody {
	t.Helper()
	if _, ok := body["confirmPassword"]; !ok {
		body["password"] = "secret"
		body["confirmPassword"] = "secret"
	}
	w := ts.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out authBody
	decode(t, w, &out)
	return out
}

func (ts *testServer) admin(t *testing.T) authBody {
	return ts.register(t, map[string]string{"name": "Office", "email": "admin@lnmiit.ac.in"})
}

func (ts *testServer) student(t *testing.T, email string) authBody {
	return ts.register(t, map[string]string{"name": email, "email": email})
}

func (ts *testServer) conductor(t *testing.T, phone string) authBody {
	return ts.register(t, map[string]string{"name": "Ravi", "phone": phone, "role": "conductor", "conductorPasscode": "STAFF-123"})
}

func (ts *testServer) createTrip(t *testing.T, adminToken string, body map[string]interface{}) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/buses", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trip struct {
		ID string `json:"id"`
	}
	decode(t, w, &trip)
	return trip.ID
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}
