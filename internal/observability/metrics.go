package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "bookings_total", Help: "Total successful seat bookings"})
	BookingRejections   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "booking_rejections_total", Help: "Bookings rejected by eligibility checks"})
	TripsCompleted      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "trips_completed_total", Help: "Trips marked completed by their driver"})
	TripsCancelled      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "trips_cancelled_total", Help: "Trips cancelled by their driver"})

	DeliveriesCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "carpool", Name: "deliveries_created_total", Help: "Delivery requests created"})
	DeliveryTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "delivery_transitions_total", Help: "Delivery status transitions applied"},
		[]string{"to"},
	)
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "carpool", Name: "match_latency_seconds", Help: "Delivery-to-trip match latency seconds"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carpool", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carpool",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
