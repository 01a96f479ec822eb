package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inconsistency kinds reported by the document service.
const (
	KindOrphanedBlob  = "orphaned_blob"
	KindMissingBlob   = "missing_blob"
	KindPartialDelete = "partial_delete"
	KindSizeMismatch  = "size_mismatch"
)

// DocumentMetrics counts document lifecycle outcomes.
// A nil *DocumentMetrics is valid and records nothing.
type DocumentMetrics struct {
	operations      *prometheus.CounterVec
	inconsistencies *prometheus.CounterVec
}

// NewDocumentMetrics creates the collectors and registers them with reg.
func NewDocumentMetrics(reg prometheus.Registerer) (*DocumentMetrics, error) {
	m := &DocumentMetrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfvault_documents_total",
				Help: "Document operations by operation and result.",
			},
			[]string{"op", "result"},
		),
		inconsistencies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pdfvault_inconsistencies_total",
				Help: "Detected blob/metadata inconsistencies that need reconciliation.",
			},
			[]string{"kind"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.inconsistencies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Operation records the outcome of one lifecycle call.
func (m *DocumentMetrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// Inconsistency records a cross-store inconsistency of the given kind.
func (m *DocumentMetrics) Inconsistency(kind string) {
	if m == nil {
		return
	}
	m.inconsistencies.WithLabelValues(kind).Inc()
}
