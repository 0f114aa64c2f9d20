package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by service, route pattern and status code.",
		},
		[]string{"service", "route", "code"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "booking_events_total",
			Help:      "Booking lifecycle events by type.",
		},
		[]string{"type"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limiter.",
		},
		[]string{"service"},
	)

	upstreamRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "shareit",
			Subsystem: "gateway",
			Name:      "upstream_retries_total",
			Help:      "Retried requests from the gateway to the server.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingEvents, rateLimited, upstreamRetries)
	})
}

// IncHTTP counts a finished request.
func IncHTTP(service, route string, code int) {
	httpRequests.WithLabelValues(service, route, strconv.Itoa(code)).Inc()
}

// IncBookingEvent counts a published booking event.
func IncBookingEvent(eventType string) {
	bookingEvents.WithLabelValues(eventType).Inc()
}

func IncRateLimited(service string) {
	rateLimited.WithLabelValues(service).Inc()
}

func IncUpstreamRetry() {
	upstreamRetries.Inc()
}
