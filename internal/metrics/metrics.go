package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal    *prometheus.CounterVec
	fineAdjustmentsTotal *prometheus.CounterVec
	storeConflictsTotal  *prometheus.CounterVec
	registerOnce         sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the library API.",
		}, []string{"method", "path", "status"})

		fineAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "fine_adjustments_total",
			Help:      "Fine balance adjustments by outcome.",
		}, []string{"outcome"})

		storeConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "library",
			Name:      "store_conflicts_total",
			Help:      "Optimistic-concurrency conflicts detected per collection.",
		}, []string{"collection"})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// IncFineAdjustment records the outcome ("applied" or "rejected") of a fine
// balance adjustment.
func IncFineAdjustment(outcome string) {
	if fineAdjustmentsTotal == nil {
		return
	}
	fineAdjustmentsTotal.WithLabelValues(outcome).Inc()
}

// IncStoreConflict counts a compare-and-set conflict on the given collection.
func IncStoreConflict(collection string) {
	if storeConflictsTotal == nil {
		return
	}
	storeConflictsTotal.WithLabelValues(collection).Inc()
}
