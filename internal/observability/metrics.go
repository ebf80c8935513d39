// Package observability exposes Prometheus metrics for the query
// engine. Metrics are optional: a nil *Metrics is a valid no-op
// receiver, so library embedders that do not scrape pay nothing.
package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracekit/spanql/pkg/types"
)

// Metrics holds the engine's instrument set.
type Metrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	rowsScanned   prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

// NewMetrics creates the instrument set and registers it with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanql",
			Name:      "queries_total",
			Help:      "Queries executed, by outcome.",
		}, []string{"status"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spanql",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock query execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		rowsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spanql",
			Name:      "rows_scanned_total",
			Help:      "Base table rows scanned across all queries.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spanql",
			Name:      "query_errors_total",
			Help:      "Query failures, by error kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.queriesTotal, m.queryDuration, m.rowsScanned, m.errorsTotal)
	return m
}

// ObserveQuery records one completed query.
func (m *Metrics) ObserveQuery(err error, elapsed time.Duration, rowsScanned int64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(ErrorKind(err)).Inc()
	}
	m.queriesTotal.WithLabelValues(status).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
	m.rowsScanned.Add(float64(rowsScanned))
}

// ErrorKind maps an error to its taxonomy label.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, types.ErrSchema):
		return "schema"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrCyclicDependency):
		return "cyclic_dependency"
	case errors.Is(err, types.ErrData):
		return "data"
	case errors.Is(err, types.ErrTypeMismatch):
		return "type_mismatch"
	default:
		return "internal"
	}
}
