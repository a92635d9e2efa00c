// Package metrics registers the Prometheus collectors shared by the server
// and the front end.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agenda",
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "gRPC handler latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	Watchers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agenda",
			Subsystem: "rpc",
			Name:      "watchers",
			Help:      "Open Watch streams.",
		},
	)

	FeedRefetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "feed",
			Name:      "refetches_total",
			Help:      "List re-fetches triggered by push events, by outcome.",
		},
		[]string{"outcome"},
	)

	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agenda",
			Subsystem: "controller",
			Name:      "rollbacks_total",
			Help:      "Optimistic mutations undone after a failed remote call.",
		},
		[]string{"op"},
	)
)
