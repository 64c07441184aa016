// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReconciliationsTotal counts reconciliation passes by outcome:
	// "updated", "noop" or "degraded".
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paneltrack_reconciliations_total",
		Help: "Reconciliation passes against the panel registry",
	}, []string{"outcome"})

	// ArchivesTotal counts panel versions copied into the archive.
	ArchivesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paneltrack_archives_total",
		Help: "Panel versions archived before replacement",
	})

	// RegistryErrorsTotal counts failed registry calls by source.
	RegistryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paneltrack_registry_errors_total",
		Help: "Failed calls to upstream sources",
	}, []string{"source"})

	// RequestDuration tracks HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paneltrack_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"method", "route", "status"})

	// SyncPanelsTotal counts panels touched by the periodic sync job.
	SyncPanelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paneltrack_sync_panels_total",
		Help: "Panels processed by the periodic registry sync",
	}, []string{"result"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
