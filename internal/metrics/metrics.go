// Package metrics holds the pipeline's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	uploads           *prometheus.CounterVec
	transcodeDuration prometheus.Histogram
	activeTranscodes  prometheus.Gauge
	metadataDrift     prometheus.Counter
	streamURLs        *prometheus.CounterVec
	webhooks          *prometheus.CounterVec
	reconcileJobs     *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "video_uploads_total",
			Help: "Synchronous uploads by outcome.",
		}, []string{"outcome"}),
		transcodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "video_transcode_duration_seconds",
			Help:    "Wall-clock time of HLS packaging runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		activeTranscodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "video_transcodes_active",
			Help: "Packaging runs currently holding a slot.",
		}),
		metadataDrift: f.NewCounter(prometheus.CounterOpts{
			Name: "video_metadata_drift_total",
			Help: "Processed packages whose lecture update failed after transcoding.",
		}),
		streamURLs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "video_stream_urls_total",
			Help: "Stream URLs resolved by source.",
		}, []string{"source"}),
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "video_webhooks_total",
			Help: "Processing callbacks by status.",
		}, []string{"status"}),
		reconcileJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "video_reconcile_jobs_total",
			Help: "Lecture sync jobs by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Upload(outcome string) {
	if m != nil {
		m.uploads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveTranscode(seconds float64) {
	if m != nil {
		m.transcodeDuration.Observe(seconds)
	}
}

// TranscodeStarted increments the active gauge and returns the matching decrement.
func (m *Metrics) TranscodeStarted() func() {
	if m == nil {
		return func() {}
	}
	m.activeTranscodes.Inc()
	return m.activeTranscodes.Dec
}

func (m *Metrics) MetadataDrift() {
	if m != nil {
		m.metadataDrift.Inc()
	}
}

func (m *Metrics) StreamURL(source string) {
	if m != nil {
		m.streamURLs.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) Webhook(status string) {
	if m != nil {
		m.webhooks.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) Reconcile(outcome string) {
	if m != nil {
		m.reconcileJobs.WithLabelValues(outcome).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	var h http.Handler = promhttp.Handler()
	if m != nil {
		h = promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	}
	return gin.WrapH(h)
}
