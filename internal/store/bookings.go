package store

import (
	"context"
	"time"

	"campus-bus-backend/internal/model"
)

// CreateBooking inserts a booking. A seat or (user, trip) pair that is already
// held surfaces as ErrDuplicate.
func (s *gormStore) CreateBooking(ctx context.Context, booking *model.Booking) error {
	return translate(s.db.WithContext(ctx).Create(booking).Error)
}

func (s *gormStore) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	var booking model.Booking
	if err := s.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

func (s *gormStore) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus, cancelledAt *time.Time, from ...model.BookingStatus) error {
	updates := map[string]interface{}{"status": status}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	query := s.db.WithContext(ctx).Model(&model.Booking{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) FindOccupiedBooking(ctx context.Context, userID, tripID string) (*model.Booking, error) {
	var booking model.Booking
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND trip_id = ? AND status IN ?", userID, tripID, occupiedStatuses()).
		First(&booking).Error
	if err != nil {
		return nil, translate(err)
	}
	return &booking, nil
}

// OccupiedSeats returns the seat numbers held on a trip.
func (s *gormStore) OccupiedSeats(ctx context.Context, tripID string) ([]int, error) {
	var seats []int
	err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("trip_id = ? AND status IN ?", tripID, occupiedStatuses()).
		Order("seat_number").
		Pluck("seat_number", &seats).Error
	return seats, translate(err)
}

type tripCount struct {
	TripID string
	Count  int
}

// CountOccupiedByTrip returns occupied seat counts keyed by trip id. Trips with
// no bookings are absent from the map.
func (s *gormStore) CountOccupiedByTrip(ctx context.Context, tripIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(tripIDs))
	if len(tripIDs) == 0 {
		return counts, nil
	}
	var rows []tripCount
	err := s.db.WithContext(ctx).
		Model(&model.Booking{}).
		Select("trip_id, COUNT(*) AS count").
		Where("trip_id IN ? AND status IN ?", tripIDs, occupiedStatuses()).
		Group("trip_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	for _, r := range rows {
		counts[r.TripID] = r.Count
	}
	return counts, nil
}

// ListBookingsByUser returns a user's bookings, newest first.
func (s *gormStore) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, translate(err)
}

func (s *gormStore) ListOccupiedBookingsByTrip(ctx context.Context, tripID string) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("trip_id = ? AND status IN ?", tripID, occupiedStatuses()).
		Order("seat_number").
		Find(&bookings).Error
	return bookings, translate(err)
}

// ListAllBookings returns every booking with its passenger, newest first.
func (s *gormStore) ListAllBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	err := s.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Find(&bookings).Error
	return bookings, translate(err)
}
