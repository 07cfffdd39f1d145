// Package window decides whether a trip is still upcoming and whether
// cancellation or attendance actions fall inside their permitted windows.
package window

import (
	"time"

	"campus-bus-backend/internal/parse"
)

const (
	// CancelCutoffMinutes is the minimum lead time required to cancel a booking.
	CancelCutoffMinutes = 30
	// AttendanceOpensMinutes is how long before departure attendance may be marked.
	AttendanceOpensMinutes = 10
)

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// LoadLocation resolves the schedule timezone. When the zone database is not
// available, Asia/Kolkata falls back to a fixed +05:30 offset.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == "" || name == "Asia/Kolkata" {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return time.UTC
}

// Evaluator compares same-day schedule times against "now" in one timezone.
type Evaluator struct {
	clock Clock
	loc   *time.Location
}

// NewEvaluator creates an Evaluator. A nil clock uses the system clock.
func NewEvaluator(clock Clock, loc *time.Location) *Evaluator {
	if clock == nil {
		clock = SystemClock{}
	}
	if loc == nil {
		loc = LoadLocation("")
	}
	return &Evaluator{clock: clock, loc: loc}
}

// Now returns the current instant in the schedule timezone.
func (e *Evaluator) Now() time.Time {
	return e.clock.Now().In(e.loc)
}

// NowMinutes returns the current minute of day in the schedule timezone.
func (e *Evaluator) NowMinutes() int {
	now := e.Now()
	return now.Hour()*60 + now.Minute()
}

// MinutesUntil returns departure minus now, in minutes. Unparsable times
// count as midnight and therefore as already departed.
func (e *Evaluator) MinutesUntil(departure string) int {
	return parse.MinutesSinceMidnight(departure) - e.NowMinutes()
}

// IsUpcoming reports whether the departure is later today.
func (e *Evaluator) IsUpcoming(departure string) bool {
	return e.MinutesUntil(departure) > 0
}

// CanCancel reports whether a booking on this departure may still be cancelled.
func (e *Evaluator) CanCancel(departure string) bool {
	return e.MinutesUntil(departure) >= CancelCutoffMinutes
}

// CanMarkAttendance reports whether the attendance window has opened. It has
// no closing bound.
func (e *Evaluator) CanMarkAttendance(departure string) bool {
	return e.MinutesUntil(departure) <= AttendanceOpensMinutes
}
