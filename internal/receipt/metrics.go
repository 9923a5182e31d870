package receipt

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/shopping-tracker/internal/parser"
)

// Import results recorded by Metrics
const (
	resultParsed      = "parsed"
	resultTruncated   = "truncated"
	resultUnsupported = "unsupported_merchant"
	resultMalformed   = "malformed"
	resultFailed      = "failed"
)

// Metrics exposes receipt import and settlement counters in Prometheus format.
// A nil *Metrics records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	imports     *prometheus.CounterVec
	items       prometheus.Histogram
	settlements prometheus.Counter
}

// NewMetrics creates a Metrics with its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopping_tracker",
			Name:      "receipt_imports_total",
			Help:      "Receipt uploads by outcome.",
		}, []string{"result"}),
		items: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shopping_tracker",
			Name:      "receipt_items",
			Help:      "Line items found per imported receipt.",
			Buckets:   []float64{1, 5, 10, 20, 40, 80},
		}),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shopping_tracker",
			Name:      "settlements_total",
			Help:      "Settlements created.",
		}),
	}
	m.registry.MustRegister(
		m.imports,
		m.items,
		m.settlements,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeImport(receipt *Receipt, err error) {
	if m == nil {
		return
	}

	switch {
	case err == nil && receipt.Truncated:
		m.imports.WithLabelValues(resultTruncated).Inc()
	case err == nil:
		m.imports.WithLabelValues(resultParsed).Inc()
	case errors.Is(err, parser.ErrUnsupportedMerchant):
		m.imports.WithLabelValues(resultUnsupported).Inc()
	case errors.Is(err, parser.ErrMalformedReceipt):
		m.imports.WithLabelValues(resultMalformed).Inc()
	default:
		m.imports.WithLabelValues(resultFailed).Inc()
	}

	if err == nil {
		m.items.Observe(float64(len(receipt.Items)))
	}
}

func (m *Metrics) observeSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}
