// Package metrics provides Prometheus metrics for the version store, live
// sessions, media slots, and the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quill"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Version metrics
	BackupsCreated  prometheus.Counter
	BackupFailures  *prometheus.CounterVec
	BackupsPruned   prometheus.Counter
	PruneFileMisses prometheus.Counter
	Restores        *prometheus.CounterVec

	// Session metrics
	SessionSaves       prometheus.Counter
	SessionBackups     prometheus.Counter
	SessionTrailPruned prometheus.Counter

	// Media slot metrics
	MediaSlotsAllocated *prometheus.CounterVec
	MediaSlotsReleased  prometheus.Counter

	// Latency and API metrics
	OperationDuration *prometheus.HistogramVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. A nil reg leaves the
// collectors unregistered, which suits tests and CLI one-shots.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackupsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_created_total",
			Help:      "Total number of transcription versions created",
		}),
		BackupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_failures_total",
			Help:      "Total number of failed version creations by stage",
		}, []string{"stage"}),
		BackupsPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_pruned_total",
			Help:      "Total number of version records removed by retention",
		}),
		PruneFileMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prune_file_misses_total",
			Help:      "Version files that were already gone or could not be removed during pruning",
		}),
		Restores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restores_total",
			Help:      "Total number of restores by kind",
		}, []string{"kind"}),

		SessionSaves: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_saves_total",
			Help:      "Total number of live session saves",
		}),
		SessionBackups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_backups_total",
			Help:      "Total number of live session trail backups written",
		}),
		SessionTrailPruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_trail_pruned_total",
			Help:      "Total number of session trail files removed by the cap",
		}),

		MediaSlotsAllocated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_slots_allocated_total",
			Help:      "Media slot numbers handed out, split by reused or fresh",
		}, []string{"source"}),
		MediaSlotsReleased: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_slots_released_total",
			Help:      "Media slot numbers returned to the free pool",
		}),

		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP API requests by route pattern and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveSince records the elapsed time of an operation.
func (m *Metrics) ObserveSince(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
