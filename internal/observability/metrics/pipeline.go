package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records upload pipeline outcomes.
type PipelineMetrics struct {
	batchFiles       prometheus.Histogram
	invoicesTotal    *prometheus.CounterVec
	summaryFailures  prometheus.Counter
	pagesPerDocument prometheus.Histogram
	breakerChanges   *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	constLabels := prometheus.Labels{"service": service}

	batchFiles := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "upload",
			Name:        "batch_files",
			Help:        "Distribution of files per upload batch.",
			Buckets:     []float64{1, 2, 3, 5, 8, 13, 21},
			ConstLabels: constLabels,
		},
	)
	invoicesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "upload",
			Name:        "invoices_total",
			Help:        "Total processed invoices by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"outcome"},
	)
	summaryFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "summary",
			Name:        "failures_total",
			Help:        "Total summaries replaced by the failure placeholder.",
			ConstLabels: constLabels,
		},
	)
	pagesPerDocument := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "upload",
			Name:        "pdf_pages",
			Help:        "Distribution of pages per uploaded PDF.",
			Buckets:     []float64{1, 2, 3, 5, 10, 20, 50},
			ConstLabels: constLabels,
		},
	)

	breakerChanges := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "breaker_transitions_total",
			Help:        "Circuit breaker state transitions by operation and target state.",
			ConstLabels: constLabels,
		},
		[]string{"operation", "to"},
	)

	registerer.MustRegister(batchFiles, invoicesTotal, summaryFailures, pagesPerDocument, breakerChanges)

	return &PipelineMetrics{
		batchFiles:       batchFiles,
		invoicesTotal:    invoicesTotal,
		summaryFailures:  summaryFailures,
		pagesPerDocument: pagesPerDocument,
		breakerChanges:   breakerChanges,
	}
}

func (m *PipelineMetrics) ObserveBatch(files int) {
	m.batchFiles.Observe(float64(files))
}

func (m *PipelineMetrics) ObserveInvoice(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.invoicesTotal.WithLabelValues(outcome).Inc()
}

func (m *PipelineMetrics) ObserveSummaryFailure() {
	m.summaryFailures.Inc()
}

func (m *PipelineMetrics) ObservePages(pages int) {
	if pages <= 0 {
		return
	}
	m.pagesPerDocument.Observe(float64(pages))
}

// ObserveBreakerTransition matches resilience.Config.OnBreakerStateChange.
func (m *PipelineMetrics) ObserveBreakerTransition(operation, _, to string) {
	m.breakerChanges.WithLabelValues(operation, to).Inc()
}
