package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "verifications_total",
		Help:      "Total verification attempts by terminal outcome",
	}, []string{"outcome"})

	PendingInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "pending_inserted_total",
		Help:      "Total pending records created by accepted verifications",
	})

	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attend",
		Name:      "decisions_total",
		Help:      "Total reviewer decisions committed to the ledger",
	}, []string{"status"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	GallerySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "gallery_size",
		Help:      "Number of identities in the matching gallery",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attend",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attend",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket observers",
	})
)
