package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_events_accepted_total",
		Help: "The total number of lifecycle transitions accepted by the fold",
	})

	eventsIgnored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_events_ignored_total",
		Help: "The total number of duplicate or stale transitions no-opped by the fold",
	})

	eventsUnknownOrder = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_events_unknown_order_total",
		Help: "The total number of events referencing an order the store had no record of",
	})

	samplesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_location_samples_discarded_total",
		Help: "The total number of location samples rejected by the monotonic guard",
	})

	liveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracking_live_subscribers",
		Help: "The number of currently connected live-channel sessions",
	})

	subscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_subscribers_dropped_total",
		Help: "The total number of slow consumers disconnected during fan-out",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracking_request_duration_seconds",
		Help:    "Time spent serving HTTP requests",
		Buckets: prometheus.DefBuckets,
	})
)

func MetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		requestDuration.Observe(time.Since(start).Seconds())
		return err
	}
}
