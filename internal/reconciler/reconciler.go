// Package reconciler periodically retries waiting-list promotion so a seat
// freed while a background promotion failed is still handed on.
package reconciler

import (
	"context"
	"time"

	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/window"
)

// Promoter moves the head of a trip's waiting list into a free seat.
type Promoter interface {
	Promote(ctx context.Context, tripID string) (*model.Booking, error)
}

// Service sweeps upcoming trips for promotable waiting entries.
type Service struct {
	store    store.Store
	window   *window.Evaluator
	promoter Promoter
	interval time.Duration
	log      logger.Logger
}

// NewService creates a reconciler that sweeps every interval.
func NewService(s store.Store, eval *window.Evaluator, p Promoter, interval time.Duration, log logger.Logger) *Service {
	return &Service{store: s, window: eval, promoter: p, interval: interval, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("starting waiting list reconciler", "interval", s.interval.String())
	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("waiting list reconciler shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce promotes waiting students on every upcoming trip that has both
// free seats and a queue. It returns the number of promotions made.
func (s *Service) SweepOnce(ctx context.Context) int {
	trips, err := s.store.ListTrips(ctx)
	if err != nil {
		s.log.Error("reconciler failed to list trips", "error", err)
		return 0
	}

	promoted := 0
	for i := range trips {
		trip := &trips[i]
		if trip.IsPlaceholder() || !s.window.IsUpcoming(trip.DepartureTime) {
			continue
		}

		waiting, err := s.store.CountWaiting(ctx, []string{trip.ID})
		if err != nil {
			s.log.Error("reconciler failed to count waiting entries", "trip_id", trip.ID, "error", err)
			continue
		}

		// Each promotion consumes one entry, so the queue length bounds the loop.
		for ; waiting > 0; waiting-- {
			if ctx.Err() != nil {
				return promoted
			}
			b, err := s.promoter.Promote(ctx, trip.ID)
			if err != nil {
				s.log.Error("reconciler promotion failed", "trip_id", trip.ID, "error", err)
				break
			}
			if b == nil {
				break
			}
			promoted++
		}
	}

	if promoted > 0 {
		s.log.Info("reconciler promoted waiting students", "count", promoted)
	}
	return promoted
}
