package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InvoiceMetrics records invoice posting outcomes.
type InvoiceMetrics struct {
	duration *prometheus.HistogramVec
	posted   *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewInvoiceMetrics registers the posting metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInvoiceMetrics(reg prometheus.Registerer) *InvoiceMetrics {
	if reg == nil {
		return &InvoiceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoice_post_duration_seconds",
		Help:    "Duration of invoice posting attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	posted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_posted_total",
		Help: "Invoices committed, by payment method.",
	}, []string{"payment_method"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_rejected_total",
		Help: "Invoice posting attempts rejected, by reason code.",
	}, []string{"reason"})
	reg.MustRegister(duration, posted, rejected)
	return &InvoiceMetrics{
		duration: duration,
		posted:   posted,
		rejected: rejected,
	}
}

// ObservePosted records a committed invoice.
func (m *InvoiceMetrics) ObservePosted(paymentMethod string, elapsed time.Duration) {
	if m == nil || m.posted == nil {
		return
	}
	m.posted.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
	m.duration.WithLabelValues("posted").Observe(elapsed.Seconds())
}

// ObserveRejected records a failed attempt under its error code.
func (m *InvoiceMetrics) ObserveRejected(reason string, elapsed time.Duration) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
	m.duration.WithLabelValues("rejected").Observe(elapsed.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
