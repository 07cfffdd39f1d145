package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"campus-bus-backend/internal/account"
	"campus-bus-backend/internal/booking"
	"campus-bus-backend/internal/fleet"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/report"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/window"
)

// Services are the collaborators the HTTP layer delegates to.
type Services struct {
	Store    store.Store
	Accounts *account.Service
	Bookings *booking.Service
	Fleet    *fleet.Registry
	Reports  *report.Generator
	Window   *window.Evaluator
	WebPush  *webpush.Options
	Log      logger.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	accounts *account.Service
	bookings *booking.Service
	fleet    *fleet.Registry
	reports  *report.Generator
	window   *window.Evaluator
	webpush  *webpush.Options
	log      logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s Services) *Handler {
	log := s.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		store:    s.Store,
		accounts: s.Accounts,
		bookings: s.Bookings,
		fleet:    s.Fleet,
		reports:  s.Reports,
		window:   s.Window,
		webpush:  s.WebPush,
		log:      log,
	}
}
