// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus_bus"

// Metrics groups the service collectors.
type Metrics struct {
	BookingsCreated      prometheus.Counter
	BookingsCancelled    prometheus.Counter
	BookingConflicts     prometheus.Counter
	WaitlistJoins        prometheus.Counter
	Promotions           prometheus.Counter
	PromotionFailures    prometheus.Counter
	AttendanceMarked     *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsFailed  *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bookings_created_total",
			Help: "Bookings confirmed by students.",
		}),
		BookingsCancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bookings_cancelled_total",
			Help: "Bookings cancelled by students.",
		}),
		BookingConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "booking_conflicts_total",
			Help: "Booking attempts rejected because the seat or trip was already held.",
		}),
		WaitlistJoins: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "waitlist_joins_total",
			Help: "Waiting list entries created.",
		}),
		Promotions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "waitlist_promotions_total",
			Help: "Waiting list entries converted into bookings.",
		}),
		PromotionFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "waitlist_promotion_failures_total",
			Help: "Background promotions that returned an error.",
		}),
		AttendanceMarked: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "attendance_marked_total",
			Help: "Attendance transitions by resulting status.",
		}, []string{"status"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_sent_total",
			Help: "Notifications delivered by channel.",
		}, []string{"channel"}),
		NotificationsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_failed_total",
			Help: "Notification deliveries that failed by channel.",
		}, []string{"channel"}),
		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_dropped_total",
			Help: "Notifications dropped because the queue was full.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
