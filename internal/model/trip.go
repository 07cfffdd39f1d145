package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlaceholderRoute marks a trip record that stands for a fleet vehicle with no
// active route.
const PlaceholderRoute = "New Asset (Placeholder)"

// DefaultTotalSeats is the capacity used when none is given.
const DefaultTotalSeats = 40

// Trip is one scheduled departure of a bus.
type Trip struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	BusNumber     string    `gorm:"size:64;not null;index" json:"busNumber"`
	Route         string    `gorm:"size:256;not null" json:"route"`
	Driver        string    `gorm:"size:128;not null" json:"driver"`
	TotalSeats    int       `gorm:"not null;default:40" json:"totalSeats"`
	DepartureTime string    `gorm:"size:16;not null" json:"departureTime"`
	ArrivalTime   string    `gorm:"size:16;not null" json:"arrivalTime"`
	ConductorID   *string   `gorm:"size:36;index" json:"conductorId"`
	CreatedAt     time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Conductor *User `gorm:"foreignKey:ConductorID;constraint:OnDelete:SET NULL" json:"conductor,omitempty"`
}

// BeforeCreate assigns an identifier and the default capacity.
func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.TotalSeats <= 0 {
		t.TotalSeats = DefaultTotalSeats
	}
	return nil
}

// IsPlaceholder reports whether the trip is a fleet asset record.
func (t *Trip) IsPlaceholder() bool {
	return t.Route == PlaceholderRoute
}

// AssignedTo reports whether the given conductor is assigned to the trip.
func (t *Trip) AssignedTo(conductorID string) bool {
	return t.ConductorID != nil && *t.ConductorID == conductorID
}
