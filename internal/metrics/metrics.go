// Package metrics declares the Prometheus metrics of the reconciliation
// engine. Metrics register on the default registry and are served by the
// HTTP API on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reconcile"

// ImportedRows counts rows parsed from bank exports, by format.
var ImportedRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "rows_total",
	Help:      "Total imported rows by parser format.",
}, []string{"format"})

// RowWarnings counts rows kept with defaulted fields.
var RowWarnings = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "import",
	Name:      "row_warnings_total",
	Help:      "Total non-fatal row parse warnings.",
})

// MatchOutcomes counts rows by their state after the match phase.
var MatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "match",
	Name:      "outcomes_total",
	Help:      "Total imported rows by match state.",
}, []string{"state"})

// MatchDuration observes the wall time of one batch match phase.
var MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "match",
	Name:      "duration_seconds",
	Help:      "Duration of the match phase for one batch.",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
})

// LedgerWrites counts materializer writes by kind (create, link) and
// result (ok, failed).
var LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "materialize",
	Name:      "ledger_writes_total",
	Help:      "Total ledger writes by kind and result.",
}, []string{"kind", "result"})

// Result label values.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Kind label values.
const (
	KindCreate = "create"
	KindLink   = "link"
)

// ObserveWrite records one ledger write.
func ObserveWrite(kind string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	LedgerWrites.WithLabelValues(kind, result).Inc()
}
