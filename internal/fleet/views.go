package fleet

import (
	"context"
	"math"
	"sort"

	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/parse"
	"campus-bus-backend/internal/seat"
)

// ConductorSummary is the public view of a conductor.
type ConductorSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// TripSummary is a trip with its occupied seat count.
type TripSummary struct {
	ID            string            `json:"id"`
	BusNumber     string            `json:"busNumber"`
	Route         string            `json:"route"`
	DepartureTime string            `json:"departureTime"`
	ArrivalTime   string            `json:"arrivalTime"`
	TotalSeats    int               `json:"totalSeats"`
	BookedSeats   int               `json:"bookedSeats"`
	Driver        string            `json:"driver"`
	Conductor     *ConductorSummary `json:"conductor"`
}

// TripDetail is a trip with its seat map.
type TripDetail struct {
	Bus            *model.Trip `json:"bus"`
	Seats          []seat.Seat `json:"seats"`
	AvailableCount int         `json:"availableCount"`
	BookedCount    int         `json:"bookedCount"`
}

// RosterSeat is a seat-map cell annotated with the booking that holds it.
type RosterSeat struct {
	seat.Seat
	BookingID *string `json:"bookingId"`
	UserName  *string `json:"userName"`
}

// RosterBus identifies the trip on a roster.
type RosterBus struct {
	ID        string `json:"id"`
	BusNumber string `json:"busNumber"`
	Route     string `json:"route"`
}

// Roster is a conductor's passenger list for one trip.
type Roster struct {
	Bus   RosterBus    `json:"bus"`
	Seats []RosterSeat `json:"seats"`
}

// Stats summarizes the active schedule for the admin dashboard.
type Stats struct {
	TotalBuses    int `json:"totalBuses"`
	TotalBookings int `json:"totalBookings"`
	TotalWaiting  int `json:"totalWaiting"`
	TotalCapacity int `json:"totalCapacity"`
	OccupancyRate int `json:"occupancyRate"`
}

// ListUpcoming returns the bookable trips departing later today.
func (r *Registry) ListUpcoming(ctx context.Context) ([]TripSummary, error) {
	return r.listWhere(ctx, func(t *model.Trip) bool {
		return !t.IsPlaceholder() && r.window.IsUpcoming(t.DepartureTime)
	})
}

// ListSchedules returns upcoming trips and fleet placeholders for admins.
func (r *Registry) ListSchedules(ctx context.Context) ([]TripSummary, error) {
	return r.listWhere(ctx, r.isActive)
}

func (r *Registry) isActive(t *model.Trip) bool {
	return t.IsPlaceholder() || r.window.IsUpcoming(t.DepartureTime)
}

func (r *Registry) listWhere(ctx context.Context, keep func(*model.Trip) bool) ([]TripSummary, error) {
	trips, err := r.store.ListTrips(ctx)
	if err != nil {
		return nil, domain.NewInternalError("failed to list trips", err)
	}

	var selected []model.Trip
	for i := range trips {
		if keep(&trips[i]) {
			selected = append(selected, trips[i])
		}
	}
	sortByDeparture(selected)

	counts, err := r.store.CountOccupiedByTrip(ctx, tripIDs(selected))
	if err != nil {
		return nil, domain.NewInternalError("failed to count bookings", err)
	}

	summaries := make([]TripSummary, 0, len(selected))
	for i := range selected {
		summaries = append(summaries, summarize(&selected[i], counts[selected[i].ID]))
	}
	return summaries, nil
}

// TripWithSeats returns a trip and its seat map.
func (r *Registry) TripWithSeats(ctx context.Context, id string) (*TripDetail, error) {
	trip, err := r.store.GetTrip(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "bus", id)
	}
	seats, err := r.store.OccupiedSeats(ctx, id)
	if err != nil {
		return nil, domain.NewInternalError("failed to load seats", err)
	}
	ledger := seat.NewLedger(trip.TotalSeats, seats)
	return &TripDetail{
		Bus:            trip,
		Seats:          ledger.Layout(),
		AvailableCount: ledger.FreeCount(),
		BookedCount:    ledger.OccupiedCount(),
	}, nil
}

// ConductorTrip picks the trip a conductor should work next: the earliest
// upcoming real trip, else the earliest real trip, else the earliest record.
func (r *Registry) ConductorTrip(ctx context.Context, conductorID string) (*TripSummary, error) {
	trips, err := r.store.ListTripsByConductor(ctx, conductorID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list trips", err)
	}
	if len(trips) == 0 {
		return nil, domain.NewNotFoundError("assigned bus", "")
	}
	sortByDeparture(trips)

	selected := -1
	for i := range trips {
		if !trips[i].IsPlaceholder() && r.window.IsUpcoming(trips[i].DepartureTime) {
			selected = i
			break
		}
	}
	if selected < 0 {
		for i := range trips {
			if !trips[i].IsPlaceholder() {
				selected = i
				break
			}
		}
	}
	if selected < 0 {
		selected = 0
	}

	trip := &trips[selected]
	counts, err := r.store.CountOccupiedByTrip(ctx, []string{trip.ID})
	if err != nil {
		return nil, domain.NewInternalError("failed to count bookings", err)
	}
	summary := summarize(trip, counts[trip.ID])
	return &summary, nil
}

// Roster returns the seat map of a trip with passenger details for its
// assigned conductor.
func (r *Registry) Roster(ctx context.Context, conductorID, tripID string) (*Roster, error) {
	trip, err := r.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, mapNotFound(err, "bus", tripID)
	}
	if !trip.AssignedTo(conductorID) {
		return nil, domain.NewForbiddenError("not authorized to view bookings for this bus")
	}

	bookings, err := r.store.ListOccupiedBookingsByTrip(ctx, tripID)
	if err != nil {
		return nil, domain.NewInternalError("failed to list bookings", err)
	}

	seatNumbers := make([]int, 0, len(bookings))
	bySeat := make(map[int]*model.Booking, len(bookings))
	for i := range bookings {
		seatNumbers = append(seatNumbers, bookings[i].SeatNumber)
		bySeat[bookings[i].SeatNumber] = &bookings[i]
	}

	layout := seat.NewLedger(trip.TotalSeats, seatNumbers).Layout()
	seats := make([]RosterSeat, 0, len(layout))
	for _, s := range layout {
		rs := RosterSeat{Seat: s}
		if b, ok := bySeat[s.Number]; ok {
			rs.Status = string(b.Status)
			id := b.ID
			rs.BookingID = &id
			name := "N/A"
			if b.User != nil {
				name = b.User.Name
			}
			rs.UserName = &name
		}
		seats = append(seats, rs)
	}

	return &Roster{
		Bus:   RosterBus{ID: trip.ID, BusNumber: trip.BusNumber, Route: trip.Route},
		Seats: seats,
	}, nil
}

// Stats computes the admin dashboard over upcoming trips and placeholders.
func (r *Registry) Stats(ctx context.Context) (*Stats, error) {
	trips, err := r.store.ListTrips(ctx)
	if err != nil {
		return nil, domain.NewInternalError("failed to list trips", err)
	}

	busNumbers := make(map[string]struct{})
	var active []model.Trip
	capacity := 0
	for i := range trips {
		t := &trips[i]
		if !r.isActive(t) {
			continue
		}
		active = append(active, *t)
		busNumbers[t.BusNumber] = struct{}{}
		if !t.IsPlaceholder() {
			capacity += t.TotalSeats
		}
	}

	ids := tripIDs(active)
	counts, err := r.store.CountOccupiedByTrip(ctx, ids)
	if err != nil {
		return nil, domain.NewInternalError("failed to count bookings", err)
	}
	bookings := 0
	for _, n := range counts {
		bookings += n
	}
	waiting, err := r.store.CountWaiting(ctx, ids)
	if err != nil {
		return nil, domain.NewInternalError("failed to count waiting list", err)
	}

	rate := 0
	if capacity > 0 {
		rate = int(math.Round(float64(bookings) / float64(capacity) * 100))
	}
	return &Stats{
		TotalBuses:    len(busNumbers),
		TotalBookings: bookings,
		TotalWaiting:  waiting,
		TotalCapacity: capacity,
		OccupancyRate: rate,
	}, nil
}

// Conductors lists every conductor account.
func (r *Registry) Conductors(ctx context.Context) ([]ConductorSummary, error) {
	users, err := r.store.ListUsersByRole(ctx, model.RoleConductor)
	if err != nil {
		return nil, domain.NewInternalError("failed to list conductors", err)
	}
	out := make([]ConductorSummary, 0, len(users))
	for i := range users {
		out = append(out, conductorSummary(&users[i]))
	}
	return out, nil
}

func summarize(t *model.Trip, booked int) TripSummary {
	s := TripSummary{
		ID:            t.ID,
		BusNumber:     t.BusNumber,
		Route:         t.Route,
		DepartureTime: t.DepartureTime,
		ArrivalTime:   t.ArrivalTime,
		TotalSeats:    t.TotalSeats,
		BookedSeats:   booked,
		Driver:        t.Driver,
	}
	if t.Conductor != nil {
		c := conductorSummary(t.Conductor)
		s.Conductor = &c
	}
	return s
}

func conductorSummary(u *model.User) ConductorSummary {
	return ConductorSummary{ID: u.ID, Name: u.Name, Phone: u.ContactPhone()}
}

func sortByDeparture(trips []model.Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return parse.MinutesSinceMidnight(trips[i].DepartureTime) < parse.MinutesSinceMidnight(trips[j].DepartureTime)
	})
}

func tripIDs(trips []model.Trip) []string {
	ids := make([]string, 0, len(trips))
	for i := range trips {
		ids = append(ids, trips[i].ID)
	}
	return ids
}
