package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"campus-bus-backend/internal/model"
)

func (s *gormStore) CreateTrip(ctx context.Context, trip *model.Trip) error {
	return translate(s.db.WithContext(ctx).Create(trip).Error)
}

// GetTrip loads a trip with its assigned conductor.
func (s *gormStore) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	var trip model.Trip
	if err := s.db.WithContext(ctx).Preload("Conductor").First(&trip, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

func (s *gormStore) UpdateTrip(ctx context.Context, id string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&model.Trip{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrip removes a trip together with its bookings and waiting entries.
func (s *gormStore) DeleteTrip(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteTripDependents(tx, []string{id}); err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Trip{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete trip %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteTripsByBusNumber removes every trip of a physical bus and all of
// their bookings. It returns the number of trips removed.
func (s *gormStore) DeleteTripsByBusNumber(ctx context.Context, busNumber string) (int, error) {
	var deleted int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.Trip{}).Where("bus_number = ?", busNumber).Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to list trips for bus %s: %w", busNumber, err)
		}
		if len(ids) == 0 {
			return ErrNotFound
		}
		if err := deleteTripDependents(tx, ids); err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&model.Trip{}).Error; err != nil {
			return fmt.Errorf("failed to delete trips for bus %s: %w", busNumber, err)
		}
		deleted = len(ids)
		return nil
	})
	return deleted, err
}

func deleteTripDependents(tx *gorm.DB, tripIDs []string) error {
	if err := tx.Where("trip_id IN ?", tripIDs).Delete(&model.Booking{}).Error; err != nil {
		return fmt.Errorf("failed to delete bookings: %w", err)
	}
	if err := tx.Where("trip_id IN ?", tripIDs).Delete(&model.WaitingEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete waiting entries: %w", err)
	}
	return nil
}

// ListTrips returns all trips with conductors, ordered by bus number.
func (s *gormStore) ListTrips(ctx context.Context) ([]model.Trip, error) {
	var trips []model.Trip
	err := s.db.WithContext(ctx).
		Preload("Conductor").
		Order("bus_number, created_at").
		Find(&trips).Error
	return trips, translate(err)
}

func (s *gormStore) ListTripsByConductor(ctx context.Context, conductorID string) ([]model.Trip, error) {
	var trips []model.Trip
	err := s.db.WithContext(ctx).
		Preload("Conductor").
		Where("conductor_id = ?", conductorID).
		Find(&trips).Error
	return trips, translate(err)
}

func (s *gormStore) TripExists(ctx context.Context, busNumber, departureTime string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("bus_number = ? AND departure_time = ?", busNumber, departureTime).
		Count(&count).Error
	return count > 0, translate(err)
}
