package booking

import (
	"fmt"

	"campus-bus-backend/internal/model"
)

func confirmedBody(b *model.Booking) string {
	return fmt.Sprintf("Your booking is confirmed!\n\nBus: %s (%s)\nSeat: %d\nDeparture: %s\n\nThank you for using the service.",
		b.BusNumber, b.Route, b.SeatNumber, b.DepartureTime)
}

func cancelledBody(b *model.Booking) string {
	return fmt.Sprintf("Your booking for seat %d on bus %s has been successfully cancelled.", b.SeatNumber, b.BusNumber)
}

func promotedBody(b *model.Booking) string {
	return fmt.Sprintf("Great news! A seat has become available on bus %s (%s) departing at %s. Your seat number is %d.\n\nYour booking is confirmed.",
		b.BusNumber, b.Route, b.DepartureTime, b.SeatNumber)
}

func boardingPassContent(b *model.Booking) string {
	return fmt.Sprintf("CAMPUSBUS|%s|%s|%d|%s", b.ID, b.BusNumber, b.SeatNumber, b.DepartureTime)
}
