package store

import (
	"context"

	"campus-bus-backend/internal/model"
)

func (s *gormStore) CreateWaitingEntry(ctx context.Context, entry *model.WaitingEntry) error {
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *gormStore) FindWaitingEntry(ctx context.Context, userID, tripID string) (*model.WaitingEntry, error) {
	var entry model.WaitingEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND trip_id = ?", userID, tripID).
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// EarliestWaitingEntry returns the head of a trip's queue.
func (s *gormStore) EarliestWaitingEntry(ctx context.Context, tripID string) (*model.WaitingEntry, error) {
	var entry model.WaitingEntry
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("trip_id = ?", tripID).
		Order("created_at, id").
		Take(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *gormStore) DeleteWaitingEntry(ctx context.Context, id string) error {
	return translate(s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.WaitingEntry{}).Error)
}

func (s *gormStore) DeleteWaitingEntryFor(ctx context.Context, userID, tripID string) error {
	return translate(s.db.WithContext(ctx).
		Where("user_id = ? AND trip_id = ?", userID, tripID).
		Delete(&model.WaitingEntry{}).Error)
}

func (s *gormStore) CountWaiting(ctx context.Context, tripIDs []string) (int, error) {
	if len(tripIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.WaitingEntry{}).
		Where("trip_id IN ?", tripIDs).
		Count(&count).Error
	return int(count), translate(err)
}
