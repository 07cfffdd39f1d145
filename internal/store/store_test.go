package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/testdb"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_ErrorPaths(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		call             func(s Store) error
		check            func(t *testing.T, err error)
	}{
		{
			name: "missing booking maps to ErrNotFound",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings"`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			call: func(s Store) error {
				_, err := s.GetBooking(ctx, "missing")
				return err
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "count query failure is returned",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT trip_id, COUNT(*) AS count FROM "bookings"`)).
					WillReturnError(errors.New("connection reset"))
			},
			call: func(s Store) error {
				_, err := s.CountOccupiedByTrip(ctx, []string{"t1"})
				return err
			},
			check: func(t *testing.T, err error) {
				assert.EqualError(t, err, "connection reset")
			},
		},
		{
			name: "trip delete rolls back when bookings cannot be removed",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "bookings"`)).
					WillReturnError(errors.New("deadlock detected"))
				mock.ExpectRollback()
			},
			call: func(s Store) error {
				return s.DeleteTrip(ctx, "t1")
			},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "deadlock detected")
			},
		},
		{
			name: "updating an unknown trip maps to ErrNotFound",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "trips"`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			call: func(s Store) error {
				return s.UpdateTrip(ctx, "missing", map[string]interface{}{"driver": "Mohan"})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)
			tc.check(t, tc.call(store))

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTranslate(t *testing.T) {
	assert.Nil(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), ErrDuplicate)
	assert.ErrorIs(t, translate(errors.New(`ERROR: duplicate key value violates unique constraint "idx_bookings_trip_seat_active" (SQLSTATE 23505)`)), ErrDuplicate)
	assert.ErrorIs(t, translate(errors.New("UNIQUE constraint failed: bookings.trip_id, bookings.seat_number")), ErrDuplicate)

	other := errors.New("disk full")
	assert.Equal(t, other, translate(other))
}

func seedTrip(t *testing.T, s Store, busNumber, departure string) *model.Trip {
	t.Helper()
	trip := &model.Trip{BusNumber: busNumber, Route: "Campus - Railway Station", Driver: "Mohan", TotalSeats: 4, DepartureTime: departure, ArrivalTime: "11:00 PM"}
	require.NoError(t, s.CreateTrip(context.Background(), trip))
	return trip
}

func seedBooking(t *testing.T, s Store, userID string, trip *model.Trip, seat int) *model.Booking {
	t.Helper()
	b := &model.Booking{UserID: userID, TripID: trip.ID, BusNumber: trip.BusNumber, Route: trip.Route, DepartureTime: trip.DepartureTime, SeatNumber: seat, Status: model.BookingConfirmed}
	require.NoError(t, s.CreateBooking(context.Background(), b))
	return b
}

func TestGormStore_Users(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))

	student, err := model.NewStudent("Asha", "asha@lnmiit.ac.in", "lnmiit.ac.in")
	require.NoError(t, err)
	student.PasswordHash = "hash"
	require.NoError(t, s.CreateUser(ctx, student))
	assert.NotEmpty(t, student.ID)

	dup, _ := model.NewStudent("Asha Again", "asha@lnmiit.ac.in", "lnmiit.ac.in")
	dup.PasswordHash = "hash"
	assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrDuplicate)

	found, err := s.FindUserByEmail(ctx, "asha@lnmiit.ac.in")
	require.NoError(t, err)
	assert.Equal(t, student.ID, found.ID)

	_, err = s.FindUserByPhone(ctx, "9999999999")
	assert.ErrorIs(t, err, ErrNotFound)

	conductor, _ := model.NewConductor("Ravi", "9876543210")
	conductor.PasswordHash = "hash"
	require.NoError(t, s.CreateUser(ctx, conductor))

	conductors, err := s.ListUsersByRole(ctx, model.RoleConductor)
	require.NoError(t, err)
	require.Len(t, conductors, 1)
	assert.Equal(t, "Ravi", conductors[0].Name)
}

func TestGormStore_BookingQueries(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))

	trip := seedTrip(t, s, "RJ14-1001", "9:00 PM")
	other := seedTrip(t, s, "RJ14-1002", "9:30 PM")

	b1 := seedBooking(t, s, "u1", trip, 3)
	seedBooking(t, s, "u2", trip, 1)
	seedBooking(t, s, "u3", other, 2)

	err := s.CreateBooking(ctx, &model.Booking{UserID: "u4", TripID: trip.ID, BusNumber: trip.BusNumber, Route: trip.Route, DepartureTime: trip.DepartureTime, SeatNumber: 3, Status: model.BookingConfirmed})
	assert.ErrorIs(t, err, ErrDuplicate)

	seats, err := s.OccupiedSeats(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, seats)

	counts, err := s.CountOccupiedByTrip(ctx, []string{trip.ID, other.ID, "empty"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{trip.ID: 2, other.ID: 1}, counts)

	now := time.Now()
	require.NoError(t, s.UpdateBookingStatus(ctx, b1.ID, model.BookingCancelled, &now, model.BookingConfirmed))
	err = s.UpdateBookingStatus(ctx, b1.ID, model.BookingCancelled, &now, model.BookingConfirmed)
	assert.ErrorIs(t, err, ErrNotFound, "guarded update applies once")
	err = s.UpdateBookingStatus(ctx, b1.ID, model.BookingAttended, nil, model.OccupiedStatuses...)
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, err := s.GetBooking(ctx, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = s.FindOccupiedBooking(ctx, "u1", trip.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	seats, err = s.OccupiedSeats(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, seats)

	// The cancelled row is retained for history.
	mine, err := s.ListBookingsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestGormStore_WaitingQueueOrder(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))
	trip := seedTrip(t, s, "RJ14-1001", "9:00 PM")

	first := &model.WaitingEntry{UserID: "u1", TripID: trip.ID, CreatedAt: time.Now().Add(-2 * time.Minute)}
	second := &model.WaitingEntry{UserID: "u2", TripID: trip.ID, CreatedAt: time.Now().Add(-1 * time.Minute)}
	require.NoError(t, s.CreateWaitingEntry(ctx, second))
	require.NoError(t, s.CreateWaitingEntry(ctx, first))

	assert.ErrorIs(t, s.CreateWaitingEntry(ctx, &model.WaitingEntry{UserID: "u1", TripID: trip.ID}), ErrDuplicate)

	head, err := s.EarliestWaitingEntry(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", head.UserID)

	require.NoError(t, s.DeleteWaitingEntry(ctx, head.ID))
	head, err = s.EarliestWaitingEntry(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "u2", head.UserID)

	count, err := s.CountWaiting(ctx, []string{trip.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteWaitingEntryFor(ctx, "u2", trip.ID))
	_, err = s.EarliestWaitingEntry(ctx, trip.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))

	morning := seedTrip(t, s, "RJ14-1001", "8:00 AM")
	evening := seedTrip(t, s, "RJ14-1001", "6:00 PM")
	kept := seedTrip(t, s, "RJ14-2002", "6:00 PM")
	seedBooking(t, s, "u1", morning, 1)
	seedBooking(t, s, "u2", evening, 1)
	keptBooking := seedBooking(t, s, "u3", kept, 1)
	require.NoError(t, s.CreateWaitingEntry(ctx, &model.WaitingEntry{UserID: "u4", TripID: morning.ID}))

	require.NoError(t, s.DeleteTrip(ctx, morning.ID))
	_, err := s.GetTrip(ctx, morning.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	count, err := s.CountWaiting(ctx, []string{morning.ID})
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.ErrorIs(t, s.DeleteTrip(ctx, morning.ID), ErrNotFound)

	deleted, err := s.DeleteTripsByBusNumber(ctx, "RJ14-1001")
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	all, err := s.ListAllBookings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keptBooking.ID, all[0].ID)

	_, err = s.DeleteTripsByBusNumber(ctx, "RJ14-1001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_TripQueries(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))

	conductor, _ := model.NewConductor("Ravi", "9876543210")
	conductor.PasswordHash = "hash"
	require.NoError(t, s.CreateUser(ctx, conductor))

	trip := seedTrip(t, s, "RJ14-1001", "8:00 AM")
	require.NoError(t, s.UpdateTrip(ctx, trip.ID, map[string]interface{}{"conductor_id": conductor.ID, "driver": "Suresh"}))

	loaded, err := s.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, "Suresh", loaded.Driver)
	require.NotNil(t, loaded.Conductor)
	assert.Equal(t, "Ravi", loaded.Conductor.Name)

	assigned, err := s.ListTripsByConductor(ctx, conductor.ID)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	exists, err := s.TripExists(ctx, "RJ14-1001", "8:00 AM")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.TripExists(ctx, "RJ14-1001", "9:00 AM")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.UpdateTrip(ctx, trip.ID, map[string]interface{}{"conductor_id": nil}))
	loaded, err = s.GetTrip(ctx, trip.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.ConductorID)
}

func TestGormStore_Subscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))

	sub := &model.PushSubscription{Endpoint: "https://push.example/abc", UserID: "u1", P256DH: "key", Auth: "auth"}
	require.NoError(t, s.UpsertSubscription(ctx, sub))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{Endpoint: "https://push.example/abc", UserID: "u1", P256DH: "key2", Auth: "auth2"}))

	got, err := s.GetSubscription(ctx, "u1", "https://push.example/abc")
	require.NoError(t, err)
	assert.Equal(t, "key2", got.P256DH)

	_, err = s.GetSubscription(ctx, "u2", "https://push.example/abc")
	assert.ErrorIs(t, err, ErrNotFound)

	subs, err := s.ListSubscriptionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, s.DeleteSubscriptionByEndpoint(ctx, "https://push.example/abc"))
	subs, err = s.ListSubscriptionsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestGormStore_TransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(testdb.New(t))
	trip := seedTrip(t, s, "RJ14-1001", "8:00 AM")

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		seedBooking(t, tx, "u1", trip, 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	seats, err := s.OccupiedSeats(ctx, trip.ID)
	require.NoError(t, err)
	assert.Empty(t, seats)
}
