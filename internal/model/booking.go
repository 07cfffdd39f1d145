package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingAttended  BookingStatus = "attended"
	BookingAbsent    BookingStatus = "absent"
	BookingCancelled BookingStatus = "cancelled"
)

// OccupiedStatuses are the statuses that hold a seat.
var OccupiedStatuses = []BookingStatus{BookingConfirmed, BookingAttended, BookingAbsent}

// Occupied reports whether a booking in this status holds its seat.
func (s BookingStatus) Occupied() bool {
	return s == BookingConfirmed || s == BookingAttended || s == BookingAbsent
}

// Booking is a seat reservation on a trip. BusNumber, Route and DepartureTime
// are copied from the trip when the booking is made.
type Booking struct {
	ID            string        `gorm:"primaryKey;size:36" json:"id"`
	UserID        string        `gorm:"size:36;not null;index" json:"userId"`
	TripID        string        `gorm:"size:36;not null;index" json:"busId"`
	BusNumber     string        `gorm:"size:64;not null" json:"busNumber"`
	Route         string        `gorm:"size:256;not null" json:"route"`
	DepartureTime string        `gorm:"size:16;not null" json:"departureTime"`
	SeatNumber    int           `gorm:"not null" json:"seatNumber"`
	Status        BookingStatus `gorm:"size:16;not null;default:confirmed;index" json:"status"`
	CreatedAt     time.Time     `gorm:"not null;index" json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updatedAt"`
	CancelledAt   *time.Time    `json:"cancelledAt,omitempty"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns an identifier.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// WaitingEntry queues a user for a seat on a full trip. Entries are served in
// CreatedAt order.
type WaitingEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_waiting_user_trip" json:"userId"`
	TripID    string    `gorm:"size:36;not null;uniqueIndex:idx_waiting_user_trip;index" json:"busId"`
	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// BeforeCreate assigns an identifier.
func (w *WaitingEntry) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
