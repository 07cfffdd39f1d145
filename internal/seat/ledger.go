// Package seat computes seat occupancy for a single trip.
package seat

import "fmt"

// PerRow is the number of seats rendered on each row of the seat map.
const PerRow = 4

// Status values rendered on the seat map.
const (
	StatusAvailable = "available"
	StatusBooked    = "booked"
)

// Seat is one cell of the seat map.
type Seat struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
	Status string `json:"status"`
}

// Ledger is the occupancy view of one trip.
type Ledger struct {
	total    int
	occupied map[int]struct{}
}

// NewLedger builds a ledger for a trip with total seats and the given occupied
// seat numbers. Numbers outside 1..total are ignored.
func NewLedger(total int, occupied []int) *Ledger {
	l := &Ledger{total: total, occupied: make(map[int]struct{}, len(occupied))}
	for _, n := range occupied {
		if n >= 1 && n <= total {
			l.occupied[n] = struct{}{}
		}
	}
	return l
}

// Total returns the trip capacity.
func (l *Ledger) Total() int { return l.total }

// IsFree reports whether seat n exists and is not occupied.
func (l *Ledger) IsFree(n int) bool {
	if n < 1 || n > l.total {
		return false
	}
	_, taken := l.occupied[n]
	return !taken
}

// LowestFree returns the lowest-numbered free seat.
func (l *Ledger) LowestFree() (int, bool) {
	for n := 1; n <= l.total; n++ {
		if _, taken := l.occupied[n]; !taken {
			return n, true
		}
	}
	return 0, false
}

func (l *Ledger) OccupiedCount() int { return len(l.occupied) }

func (l *Ledger) FreeCount() int { return l.total - len(l.occupied) }

// IsFull reports whether every seat is occupied.
func (l *Ledger) IsFull() bool { return l.FreeCount() <= 0 }

// Layout renders the seat map, PerRow seats per row.
func (l *Ledger) Layout() []Seat {
	seats := make([]Seat, 0, l.total)
	for n := 1; n <= l.total; n++ {
		row := (n-1)/PerRow + 1
		col := (n-1)%PerRow + 1
		status := StatusAvailable
		if _, taken := l.occupied[n]; taken {
			status = StatusBooked
		}
		seats = append(seats, Seat{
			ID:     fmt.Sprintf("%d-%d", row, col),
			Number: n,
			Row:    row,
			Column: col,
			Status: status,
		})
	}
	return seats
}
