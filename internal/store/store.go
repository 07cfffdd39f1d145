package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"campus-bus-backend/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// Store defines the interface for all database operations.
type Store interface {
	// Transaction runs fn against a store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByPhone(ctx context.Context, phone string) (*model.User, error)
	ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error)

	CreateTrip(ctx context.Context, trip *model.Trip) error
	GetTrip(ctx context.Context, id string) (*model.Trip, error)
	UpdateTrip(ctx context.Context, id string, updates map[string]interface{}) error
	DeleteTrip(ctx context.Context, id string) error
	DeleteTripsByBusNumber(ctx context.Context, busNumber string) (int, error)
	ListTrips(ctx context.Context) ([]model.Trip, error)
	ListTripsByConductor(ctx context.Context, conductorID string) ([]model.Trip, error)
	TripExists(ctx context.Context, busNumber, departureTime string) (bool, error)

	CreateBooking(ctx context.Context, booking *model.Booking) error
	GetBooking(ctx context.Context, id string) (*model.Booking, error)
	// UpdateBookingStatus moves a booking to status. When from is given the
	// update only applies while the booking is still in one of those
	// statuses, and ErrNotFound is returned otherwise.
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus, cancelledAt *time.Time, from ...model.BookingStatus) error
	FindOccupiedBooking(ctx context.Context, userID, tripID string) (*model.Booking, error)
	OccupiedSeats(ctx context.Context, tripID string) ([]int, error)
	CountOccupiedByTrip(ctx context.Context, tripIDs []string) (map[string]int, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListOccupiedBookingsByTrip(ctx context.Context, tripID string) ([]model.Booking, error)
	ListAllBookings(ctx context.Context) ([]model.Booking, error)

	CreateWaitingEntry(ctx context.Context, entry *model.WaitingEntry) error
	FindWaitingEntry(ctx context.Context, userID, tripID string) (*model.WaitingEntry, error)
	EarliestWaitingEntry(ctx context.Context, tripID string) (*model.WaitingEntry, error)
	DeleteWaitingEntry(ctx context.Context, id string) error
	DeleteWaitingEntryFor(ctx context.Context, userID, tripID string) error
	CountWaiting(ctx context.Context, tripIDs []string) (int, error)

	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, userID, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID, endpoint string) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}

func occupiedStatuses() []model.BookingStatus {
	return model.OccupiedStatuses
}
