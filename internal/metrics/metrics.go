// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion counts webhook and pipeline outcomes.
type Ingestion struct {
	received           prometheus.Counter
	rejected           *prometheus.CounterVec
	processed          *prometheus.CounterVec
	attachmentFailures prometheus.Counter
	duration           prometheus.Histogram
}

// NewIngestion registers the ingestion collectors on the default registry.
func NewIngestion() *Ingestion {
	return NewIngestionWith(prometheus.DefaultRegisterer)
}

// NewIngestionWith registers the collectors on reg. Tests use this with a
// fresh registry to avoid duplicate registration.
func NewIngestionWith(reg prometheus.Registerer) *Ingestion {
	factory := promauto.With(reg)
	return &Ingestion{
		received: factory.NewCounter(prometheus.CounterOpts{
			Name: "tardesk_webhook_received_total",
			Help: "Total webhook deliveries received",
		}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tardesk_webhook_rejected_total",
			Help: "Webhook deliveries rejected before ingestion",
		}, []string{"reason"}),
		processed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tardesk_emails_processed_total",
			Help: "Emails processed by the ingestion pipeline",
		}, []string{"action"}),
		attachmentFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tardesk_attachment_failures_total",
			Help: "Attachments that could not be fetched or stored",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tardesk_ingest_duration_seconds",
			Help:    "End-to-end webhook processing latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Ingestion) Received() {
	if m != nil {
		m.received.Inc()
	}
}

// Rejected records a delivery turned away before the pipeline ran,
// for example on a bad signature or an unparseable payload.
func (m *Ingestion) Rejected(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}

// Processed records a pipeline outcome by action, like new_ticket or
// follow_up.
func (m *Ingestion) Processed(action string) {
	if m != nil {
		m.processed.WithLabelValues(action).Inc()
	}
}

func (m *Ingestion) AttachmentFailure() {
	if m != nil {
		m.attachmentFailures.Inc()
	}
}

func (m *Ingestion) ObserveDuration(seconds float64) {
	if m != nil {
		m.duration.Observe(seconds)
	}
}
