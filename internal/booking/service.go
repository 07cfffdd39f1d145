// Package booking implements seat booking, cancellation, the waiting list and
// attendance marking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/events"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/metrics"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/notification"
	"campus-bus-backend/internal/seat"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/window"
)

const backgroundTimeout = 30 * time.Second

// Service owns the booking lifecycle.
type Service struct {
	store       store.Store
	window      *window.Evaluator
	notifier    notification.Notifier
	events      events.Publisher
	metrics     *metrics.Metrics
	log         logger.Logger
	serviceName string

	wg sync.WaitGroup
}

// NewService creates a booking service.
func NewService(s store.Store, eval *window.Evaluator, notifier notification.Notifier, pub events.Publisher, m *metrics.Metrics, log logger.Logger, serviceName string) *Service {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{
		store:       s,
		window:      eval,
		notifier:    notifier,
		events:      pub,
		metrics:     m,
		log:         log,
		serviceName: serviceName,
	}
}

// Drain waits for background promotions and event publishing to finish.
func (s *Service) Drain() {
	s.wg.Wait()
}

// Create books seatNumber on a trip for a user.
func (s *Service) Create(ctx context.Context, userID, tripID string, seatNumber int) (*model.Booking, error) {
	var created *model.Booking
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		trip, err := loadTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if trip.IsPlaceholder() {
			return domain.NewConflictError("this bus has no scheduled route")
		}
		if seatNumber < 1 || seatNumber > trip.TotalSeats {
			return domain.NewValidationError("seatNumber", fmt.Sprintf("must be between 1 and %d", trip.TotalSeats))
		}

		ledger, err := loadLedger(ctx, tx, trip)
		if err != nil {
			return err
		}
		if !ledger.IsFree(seatNumber) {
			return domain.NewConflictError("this seat is already booked")
		}

		if _, err := tx.FindOccupiedBooking(ctx, userID, tripID); err == nil {
			return domain.NewConflictError("you already have a booking on this bus")
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.NewInternalError("failed to check existing booking", err)
		}

		b := newBooking(userID, trip, seatNumber)
		if err := tx.CreateBooking(ctx, b); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.NewConflictError("this seat is already booked")
			}
			return domain.NewInternalError("failed to create booking", err)
		}
		if err := tx.DeleteWaitingEntryFor(ctx, userID, tripID); err != nil {
			return domain.NewInternalError("failed to clear waiting entry", err)
		}
		created = b
		return nil
	})
	if err != nil {
		if domain.IsConflict(err) {
			s.metrics.BookingConflicts.Inc()
		}
		return nil, err
	}

	s.metrics.BookingsCreated.Inc()
	s.log.Info("booking created", "booking_id", created.ID, "trip_id", tripID, "user_id", userID, "seat", seatNumber)
	s.notifier.Notify(userID, s.subject("Booking Confirmed"), confirmedBody(created))
	s.publish(events.Event{
		Type:       events.TypeBookingCreated,
		TripID:     tripID,
		BookingID:  created.ID,
		UserID:     userID,
		SeatNumber: seatNumber,
		Status:     string(created.Status),
	})
	return created, nil
}

// Cancel releases a booking held by requesterID and promotes the head of the
// trip's waiting list in the background.
func (s *Service) Cancel(ctx context.Context, requesterID, bookingID string) (*model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapNotFound(err, "booking", bookingID)
	}
	if b.UserID != requesterID {
		return nil, domain.NewUnauthorizedError("not authorized to cancel this booking")
	}
	switch b.Status {
	case model.BookingAttended, model.BookingAbsent:
		return nil, domain.NewConflictError("cannot cancel booking after attendance has been marked by the conductor")
	case model.BookingCancelled:
		return nil, domain.NewConflictError("booking is already cancelled")
	}
	if !s.window.CanCancel(b.DepartureTime) {
		return nil, domain.NewConflictError(fmt.Sprintf("cannot cancel booking less than %d minutes before departure", window.CancelCutoffMinutes))
	}

	now := s.window.Now()
	if err := s.store.UpdateBookingStatus(ctx, b.ID, model.BookingCancelled, &now, model.BookingConfirmed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewConflictError("booking is already cancelled")
		}
		return nil, domain.NewInternalError("failed to cancel booking", err)
	}
	b.Status = model.BookingCancelled
	b.CancelledAt = &now

	s.metrics.BookingsCancelled.Inc()
	s.log.Info("booking cancelled", "booking_id", b.ID, "trip_id", b.TripID, "user_id", requesterID)
	s.notifier.Notify(requesterID, s.subject("Booking Cancelled"), cancelledBody(b))
	s.publish(events.Event{
		Type:       events.TypeBookingCancelled,
		TripID:     b.TripID,
		BookingID:  b.ID,
		UserID:     requesterID,
		SeatNumber: b.SeatNumber,
		Status:     string(b.Status),
	})
	s.promoteAsync(b.TripID)
	return b, nil
}

// JoinWaitingList queues a user for a full trip.
func (s *Service) JoinWaitingList(ctx context.Context, userID, tripID string) (*model.WaitingEntry, error) {
	var entry *model.WaitingEntry
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		trip, err := loadTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if trip.IsPlaceholder() {
			return domain.NewConflictError("this bus has no scheduled route")
		}

		ledger, err := loadLedger(ctx, tx, trip)
		if err != nil {
			return err
		}
		if !ledger.IsFull() {
			return domain.NewConflictError("this bus is not full, please book a seat directly")
		}

		if _, err := tx.FindWaitingEntry(ctx, userID, tripID); err == nil {
			return domain.NewConflictError("you are already on the waiting list for this bus")
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.NewInternalError("failed to check waiting list", err)
		}
		if _, err := tx.FindOccupiedBooking(ctx, userID, tripID); err == nil {
			return domain.NewConflictError("you already have a confirmed booking on this bus")
		} else if !errors.Is(err, store.ErrNotFound) {
			return domain.NewInternalError("failed to check existing booking", err)
		}

		entry = &model.WaitingEntry{UserID: userID, TripID: tripID}
		if err := tx.CreateWaitingEntry(ctx, entry); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return domain.NewConflictError("you are already on the waiting list for this bus")
			}
			return domain.NewInternalError("failed to join waiting list", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.WaitlistJoins.Inc()
	s.log.Info("joined waiting list", "trip_id", tripID, "user_id", userID)
	return entry, nil
}

// Promote converts the earliest waiting entry of a trip into a booking on the
// lowest free seat. It returns nil when there is no free seat or nobody is
// waiting, so repeated calls are harmless.
func (s *Service) Promote(ctx context.Context, tripID string) (*model.Booking, error) {
	var promoted *model.Booking
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		trip, err := loadTrip(ctx, tx, tripID)
		if err != nil {
			return err
		}
		if trip.IsPlaceholder() {
			return nil
		}

		ledger, err := loadLedger(ctx, tx, trip)
		if err != nil {
			return err
		}
		seatNumber, ok := ledger.LowestFree()
		if !ok {
			return nil
		}

		for {
			entry, err := tx.EarliestWaitingEntry(ctx, tripID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return domain.NewInternalError("failed to read waiting list", err)
			}

			// Entries of users who already hold a seat are stale.
			if _, err := tx.FindOccupiedBooking(ctx, entry.UserID, tripID); err == nil {
				if err := tx.DeleteWaitingEntry(ctx, entry.ID); err != nil {
					return domain.NewInternalError("failed to drop stale waiting entry", err)
				}
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return domain.NewInternalError("failed to check existing booking", err)
			}

			b := newBooking(entry.UserID, trip, seatNumber)
			if err := tx.CreateBooking(ctx, b); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return domain.NewConflictError("seat was taken during promotion")
				}
				return domain.NewInternalError("failed to create promoted booking", err)
			}
			if err := tx.DeleteWaitingEntry(ctx, entry.ID); err != nil {
				return domain.NewInternalError("failed to remove waiting entry", err)
			}
			promoted = b
			return nil
		}
	})
	if err != nil || promoted == nil {
		return nil, err
	}

	s.metrics.Promotions.Inc()
	s.log.Info("waiting list promoted", "booking_id", promoted.ID, "trip_id", tripID, "user_id", promoted.UserID, "seat", promoted.SeatNumber)
	s.notifier.Notify(promoted.UserID, s.subject("You're off the waiting list!"), promotedBody(promoted))
	s.publish(events.Event{
		Type:       events.TypeBookingPromoted,
		TripID:     tripID,
		BookingID:  promoted.ID,
		UserID:     promoted.UserID,
		SeatNumber: promoted.SeatNumber,
		Status:     string(promoted.Status),
	})
	return promoted, nil
}

// MarkStatus records attendance for a booking on a trip assigned to conductorID.
func (s *Service) MarkStatus(ctx context.Context, conductorID, bookingID string, status model.BookingStatus) (*model.Booking, error) {
	if status != model.BookingAttended && status != model.BookingAbsent {
		return nil, domain.NewValidationError("status", `must be "attended" or "absent"`)
	}

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapNotFound(err, "booking", bookingID)
	}
	trip, err := s.store.GetTrip(ctx, b.TripID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, domain.NewInternalError("failed to load trip", err)
	}
	if trip == nil || !trip.AssignedTo(conductorID) {
		return nil, domain.NewForbiddenError("not authorized to update this booking")
	}
	if b.Status == model.BookingCancelled {
		return nil, domain.NewConflictError("cancelled bookings cannot be marked")
	}
	if !s.window.CanMarkAttendance(trip.DepartureTime) {
		return nil, domain.NewConflictError(fmt.Sprintf("attendance can only be started %d minutes before departure", window.AttendanceOpensMinutes))
	}

	if err := s.store.UpdateBookingStatus(ctx, b.ID, status, nil, model.OccupiedStatuses...); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NewConflictError("cancelled bookings cannot be marked")
		}
		return nil, domain.NewInternalError("failed to update booking", err)
	}
	b.Status = status

	s.metrics.AttendanceMarked.WithLabelValues(string(status)).Inc()
	s.log.Info("attendance marked", "booking_id", b.ID, "trip_id", b.TripID, "status", status)
	s.publish(events.Event{
		Type:       events.TypeBookingAttendance,
		TripID:     b.TripID,
		BookingID:  b.ID,
		UserID:     b.UserID,
		SeatNumber: b.SeatNumber,
		Status:     string(status),
	})
	return b, nil
}

// MyBookings lists a user's bookings, newest first.
func (s *Service) MyBookings(ctx context.Context, userID string) ([]model.Booking, error) {
	bookings, err := s.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list bookings", err)
	}
	return bookings, nil
}

// BoardingPass renders a PNG QR code for an occupied booking owned by userID.
func (s *Service) BoardingPass(ctx context.Context, userID, bookingID string) ([]byte, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapNotFound(err, "booking", bookingID)
	}
	if b.UserID != userID {
		return nil, domain.NewUnauthorizedError("not authorized to view this booking")
	}
	if !b.Status.Occupied() {
		return nil, domain.NewConflictError("booking is cancelled")
	}

	png, err := qrcode.Encode(boardingPassContent(b), qrcode.Medium, 256)
	if err != nil {
		return nil, domain.NewInternalError("failed to render boarding pass", err)
	}
	return png, nil
}

func (s *Service) promoteAsync(tripID string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if _, err := s.Promote(ctx, tripID); err != nil {
			s.metrics.PromotionFailures.Inc()
			s.log.Error("waiting list promotion failed", "trip_id", tripID, "error", err)
		}
	}()
}

func (s *Service) publish(event events.Event) {
	event.OccurredAt = s.window.Now().UTC()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish event", "type", event.Type, "trip_id", event.TripID, "error", err)
		}
	}()
}

func (s *Service) subject(title string) string {
	if s.serviceName == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, s.serviceName)
}

func loadTrip(ctx context.Context, s store.Store, tripID string) (*model.Trip, error) {
	trip, err := s.GetTrip(ctx, tripID)
	if err != nil {
		return nil, mapNotFound(err, "bus", tripID)
	}
	return trip, nil
}

func loadLedger(ctx context.Context, s store.Store, trip *model.Trip) (*seat.Ledger, error) {
	seats, err := s.OccupiedSeats(ctx, trip.ID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load seats", err)
	}
	return seat.NewLedger(trip.TotalSeats, seats), nil
}

func newBooking(userID string, trip *model.Trip, seatNumber int) *model.Booking {
	return &model.Booking{
		UserID:        userID,
		TripID:        trip.ID,
		BusNumber:     trip.BusNumber,
		Route:         trip.Route,
		DepartureTime: trip.DepartureTime,
		SeatNumber:    seatNumber,
		Status:        model.BookingConfirmed,
	}
}

func mapNotFound(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewNotFoundError(resource, id)
	}
	return domain.NewInternalError(fmt.Sprintf("failed to load %s", resource), err)
}
