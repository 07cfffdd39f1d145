// Package fleet manages bus schedules and the physical fleet, and builds the
// trip views shown to students, conductors and admins.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"campus-bus-backend/internal/domain"
	"campus-bus-backend/internal/events"
	"campus-bus-backend/internal/logger"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/parse"
	"campus-bus-backend/internal/store"
	"campus-bus-backend/internal/window"
)

// TripInput describes a new trip.
type TripInput struct {
	BusNumber     string
	Route         string
	Driver        string
	TotalSeats    int
	DepartureTime string
	ArrivalTime   string
	ConductorID   *string
}

// TripPatch is a partial update. Nil fields are left unchanged. When
// ConductorSet is true the conductor is replaced by ConductorID, and a nil
// ConductorID clears it.
type TripPatch struct {
	BusNumber     *string
	Route         *string
	Driver        *string
	TotalSeats    *int
	DepartureTime *string
	ArrivalTime   *string
	ConductorSet  bool
	ConductorID   *string
}

const publishTimeout = 30 * time.Second

// Promoter moves the head of a trip's waiting list into a free seat.
type Promoter interface {
	Promote(ctx context.Context, tripID string) (*model.Booking, error)
}

// Registry is the schedule and fleet service.
type Registry struct {
	store    store.Store
	window   *window.Evaluator
	events   events.Publisher
	promoter Promoter
	log      logger.Logger

	wg sync.WaitGroup
}

// NewRegistry creates a Registry. A nil promoter leaves seats added by a
// capacity increase to the reconciler.
func NewRegistry(s store.Store, eval *window.Evaluator, pub events.Publisher, promoter Promoter, log logger.Logger) *Registry {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Registry{store: s, window: eval, events: pub, promoter: promoter, log: log}
}

// Drain blocks until every in-flight event publish has finished.
func (r *Registry) Drain() {
	r.wg.Wait()
}

// Create adds a trip. A real schedule may not repeat an existing
// (bus number, departure time) pair; placeholders may.
func (r *Registry) Create(ctx context.Context, in TripInput) (*model.Trip, error) {
	in.BusNumber = strings.TrimSpace(in.BusNumber)
	in.Route = strings.TrimSpace(in.Route)
	in.Driver = strings.TrimSpace(in.Driver)
	in.DepartureTime = strings.TrimSpace(in.DepartureTime)
	in.ArrivalTime = strings.TrimSpace(in.ArrivalTime)

	if err := requireFields(map[string]string{
		"busNumber":     in.BusNumber,
		"route":         in.Route,
		"driver":        in.Driver,
		"departureTime": in.DepartureTime,
		"arrivalTime":   in.ArrivalTime,
	}); err != nil {
		return nil, err
	}
	if err := validateTimes(in.DepartureTime, in.ArrivalTime); err != nil {
		return nil, err
	}
	if in.TotalSeats < 0 {
		return nil, domain.NewValidationError("totalSeats", "must be positive")
	}
	if in.TotalSeats == 0 {
		in.TotalSeats = model.DefaultTotalSeats
	}
	if err := r.checkConductor(ctx, in.ConductorID); err != nil {
		return nil, err
	}

	if in.Route != model.PlaceholderRoute {
		exists, err := r.store.TripExists(ctx, in.BusNumber, in.DepartureTime)
		if err != nil {
			return nil, domain.NewInternalError("failed to check schedule", err)
		}
		if exists {
			return nil, domain.NewConflictError(fmt.Sprintf("a schedule for Bus %s departing at %s already exists", in.BusNumber, in.DepartureTime))
		}
	}

	trip := &model.Trip{
		BusNumber:     in.BusNumber,
		Route:         in.Route,
		Driver:        in.Driver,
		TotalSeats:    in.TotalSeats,
		DepartureTime: in.DepartureTime,
		ArrivalTime:   in.ArrivalTime,
		ConductorID:   in.ConductorID,
	}
	if err := r.store.CreateTrip(ctx, trip); err != nil {
		return nil, domain.NewInternalError("failed to create trip", err)
	}
	r.log.Info("trip created", "trip_id", trip.ID, "bus_number", trip.BusNumber, "departure", trip.DepartureTime)
	return trip, nil
}

// Update applies a partial update to a trip.
func (r *Registry) Update(ctx context.Context, id string, patch TripPatch) (*model.Trip, error) {
	trip, err := r.store.GetTrip(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "bus", id)
	}

	updates := map[string]interface{}{}
	setText := func(column string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	setText("bus_number", patch.BusNumber)
	setText("route", patch.Route)
	setText("driver", patch.Driver)
	setText("departure_time", patch.DepartureTime)
	setText("arrival_time", patch.ArrivalTime)

	departure, arrival := trip.DepartureTime, trip.ArrivalTime
	if v, ok := updates["departure_time"]; ok {
		departure = v.(string)
	}
	if v, ok := updates["arrival_time"]; ok {
		arrival = v.(string)
	}
	if err := validateTimes(departure, arrival); err != nil {
		return nil, err
	}

	added := 0
	if patch.TotalSeats != nil && *patch.TotalSeats != 0 {
		if *patch.TotalSeats < 0 {
			return nil, domain.NewValidationError("totalSeats", "must be positive")
		}
		seats, err := r.store.OccupiedSeats(ctx, id)
		if err != nil {
			return nil, domain.NewInternalError("failed to load seats", err)
		}
		if n := len(seats); n > 0 && seats[n-1] > *patch.TotalSeats {
			return nil, domain.NewConflictError(fmt.Sprintf("seat %d is booked, capacity cannot drop below it", seats[n-1]))
		}
		updates["total_seats"] = *patch.TotalSeats
		added = *patch.TotalSeats - trip.TotalSeats
	}

	if patch.ConductorSet {
		conductorID := patch.ConductorID
		if conductorID != nil && *conductorID == "" {
			conductorID = nil
		}
		if err := r.checkConductor(ctx, conductorID); err != nil {
			return nil, err
		}
		updates["conductor_id"] = conductorID
	}

	if len(updates) > 0 {
		if err := r.store.UpdateTrip(ctx, id, updates); err != nil {
			return nil, mapNotFound(err, "bus", id)
		}
	}

	r.fillAddedSeats(ctx, id, added)

	updated, err := r.store.GetTrip(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "bus", id)
	}
	r.log.Info("trip updated", "trip_id", id, "fields", len(updates))
	return updated, nil
}

// fillAddedSeats offers each seat gained by a capacity increase to the
// waiting list. Failures are logged; the reconciler retries them.
func (r *Registry) fillAddedSeats(ctx context.Context, tripID string, added int) {
	if r.promoter == nil {
		return
	}
	for i := 0; i < added; i++ {
		promoted, err := r.promoter.Promote(ctx, tripID)
		if err != nil {
			r.log.Warn("promotion after capacity increase failed", "trip_id", tripID, "error", err)
			return
		}
		if promoted == nil {
			return
		}
	}
}

// Delete removes a trip and its bookings.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteTrip(ctx, id); err != nil {
		return mapNotFound(err, "bus", id)
	}
	r.log.Info("trip deleted", "trip_id", id)
	r.publishDeleted(id)
	return nil
}

// DeleteAsset removes every schedule of a physical bus, placeholder included,
// together with their bookings. It returns the number of schedules removed.
func (r *Registry) DeleteAsset(ctx context.Context, busNumber string) (int, error) {
	var ids []string
	trips, err := r.store.ListTrips(ctx)
	if err != nil {
		return 0, domain.NewInternalError("failed to list trips", err)
	}
	for _, t := range trips {
		if t.BusNumber == busNumber {
			ids = append(ids, t.ID)
		}
	}

	deleted, err := r.store.DeleteTripsByBusNumber(ctx, busNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, domain.NewNotFoundError("physical bus asset", busNumber)
		}
		return 0, domain.NewInternalError("failed to delete bus asset", err)
	}
	r.log.Info("bus asset deleted", "bus_number", busNumber, "schedules", deleted)
	for _, id := range ids {
		r.publishDeleted(id)
	}
	return deleted, nil
}

func (r *Registry) publishDeleted(tripID string) {
	event := events.Event{
		Type:       events.TypeTripDeleted,
		TripID:     tripID,
		OccurredAt: r.window.Now().UTC(),
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.events.Publish(ctx, event); err != nil {
			r.log.Warn("failed to publish event", "type", event.Type, "trip_id", tripID, "error", err)
		}
	}()
}

func (r *Registry) checkConductor(ctx context.Context, conductorID *string) error {
	if conductorID == nil {
		return nil
	}
	u, err := r.store.GetUser(ctx, *conductorID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewValidationError("conductor", "conductor does not exist")
	}
	if err != nil {
		return domain.NewInternalError("failed to load conductor", err)
	}
	if u.Role != model.RoleConductor {
		return domain.NewValidationError("conductor", "user is not a conductor")
	}
	return nil
}

func requireFields(fields map[string]string) error {
	for _, name := range []string{"busNumber", "route", "driver", "departureTime", "arrivalTime"} {
		if v, ok := fields[name]; ok && v == "" {
			return domain.NewValidationError(name, "is required")
		}
	}
	return nil
}

func validateTimes(departure, arrival string) error {
	if _, err := parse.ParseClock(departure); err != nil {
		return domain.NewValidationError("departureTime", `must look like "9:30 AM"`)
	}
	if _, err := parse.ParseClock(arrival); err != nil {
		return domain.NewValidationError("arrivalTime", `must look like "9:30 AM"`)
	}
	return nil
}

func mapNotFound(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NewNotFoundError(resource, id)
	}
	return domain.NewInternalError(fmt.Sprintf("failed to load %s", resource), err)
}
