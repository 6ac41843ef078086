package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Name:      "photos_indexed_total",
		Help:      "Total number of photos run through the face indexer",
	}, []string{"status"})

	FacesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "racephotos",
		Name:      "faces_indexed_total",
		Help:      "Total number of faces written to the metadata store",
	})

	IndexingRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "racephotos",
		Name:      "indexing_run_duration_seconds",
		Help:      "Duration of one event indexing run",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "racephotos",
		Name:      "search_duration_seconds",
		Help:      "Duration of one probe search including aggregation",
		Buckets:   prometheus.DefBuckets,
	})

	SearchMatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "racephotos",
		Name:      "search_matches",
		Help:      "Aggregated matches returned per search",
		Buckets:   prometheus.LinearBuckets(0, 5, 10),
	})

	PhotosIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Name:      "photos_ingested_total",
		Help:      "Photo assets created from upload notifications",
	}, []string{"outcome"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racephotos",
		Name:      "provider_calls_total",
		Help:      "Calls against the face recognition provider",
	}, []string{"operation", "outcome"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "racephotos",
		Name:      "queue_depth",
		Help:      "Number of pending indexing jobs in the queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "racephotos",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
