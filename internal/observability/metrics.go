package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal          = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "location_searches_total", Help: "Total location search requests issued upstream"})
	SearchesShortCircuited = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "location_searches_short_circuited_total", Help: "Searches skipped because the query was below the minimum length"})
	SearchResponsesStale   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "location_search_responses_stale_total", Help: "Search responses discarded because a newer query superseded them"})

	GeocodeCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "geocode_cache_hits_total", Help: "Current-location resolutions served from the coordinate cache"})
	GeocodeCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "geocode_cache_misses_total", Help: "Current-location resolutions that required a reverse-geocode call"})

	PriceCalculationsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "price_calculations_total", Help: "Successful price calculations"})
	PriceCalculationErrors = promauto.NewCounter(prometheus.CounterOpts{Namespace: "courier_booking", Name: "price_calculation_errors_total", Help: "Failed price calculations"})

	OrdersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "courier_booking", Name: "orders_submitted_total", Help: "Order submissions by outcome"},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "courier_booking", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "courier_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
