package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter bridges a Collector's atomic counters and histograms
// into client_golang GaugeFuncs, registered against a Prometheus
// registry. GaugeFunc is used for the monotonically-increasing counters
// too (tokens issued, auth failures, ...): the Collector, not Prometheus,
// owns the authoritative count, so each scrape simply reads the current
// value rather than duplicating the increment logic behind a
// prometheus.Counter.
type PrometheusExporter struct {
	collector *Collector
	registry  *prometheus.Registry
}

// NewPrometheusExporter registers a family of HKDS metrics, backed by c's
// Snapshot, against a fresh registry. The namespace is prepended to every
// metric name (e.g. "hkds").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gaugeFunc := func(name, help string, read func(Snapshot) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return read(c.Snapshot())
		})
	}

	gaugeFunc("tokens_issued_total", "Total tokens issued by encrypt_token", func(s Snapshot) float64 {
		return float64(s.TokensIssued)
	})
	gaugeFunc("token_auth_failures_total", "Total token MAC verification failures", func(s Snapshot) float64 {
		return float64(s.TokenAuthFailures)
	})
	gaugeFunc("messages_encrypted_total", "Total messages encrypted", func(s Snapshot) float64 {
		return float64(s.MessagesEncrypted)
	})
	gaugeFunc("messages_decrypted_total", "Total messages decrypted", func(s Snapshot) float64 {
		return float64(s.MessagesDecrypted)
	})
	gaugeFunc("message_auth_failures_total", "Total message MAC verification failures", func(s Snapshot) float64 {
		return float64(s.MessageAuthFailures)
	})
	gaugeFunc("cache_exhaustions_total", "Total client encrypt calls that found an empty cache", func(s Snapshot) float64 {
		return float64(s.CacheExhaustions)
	})
	gaugeFunc("cache_refills_total", "Total generate_cache calls", func(s Snapshot) float64 {
		return float64(s.CacheRefills)
	})
	gaugeFunc("batch_x8_operations_total", "Total eight-way batched derivation calls", func(s Snapshot) float64 {
		return float64(s.BatchX8Operations)
	})
	gaugeFunc("batch_x64_operations_total", "Total sixty-four-way parallel derivation calls", func(s Snapshot) float64 {
		return float64(s.BatchX64Operations)
	})
	gaugeFunc("entropy_failures_total", "Total generate_mdk entropy-source failures", func(s Snapshot) float64 {
		return float64(s.EntropyFailures)
	})
	gaugeFunc("config_errors_total", "Total client/server configuration mismatches", func(s Snapshot) float64 {
		return float64(s.ConfigErrors)
	})
	gaugeFunc("uptime_seconds", "Time since the collector was created", func(s Snapshot) float64 {
		return s.Uptime.Seconds()
	})

	histogramFunc := func(name, help string, buckets []float64, read func(Snapshot) HistogramSummary) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name + "_count",
			Help:      help + " (observation count)",
		}, func() float64 {
			return float64(read(c.Snapshot()).Count)
		})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name + "_sum",
			Help:      help + " (observation sum)",
		}, func() float64 {
			return read(c.Snapshot()).Sum
		})
		_ = buckets // bucket boundaries are fixed at Histogram construction time; see NewHistogram
	}

	histogramFunc("token_issue_latency_microseconds", "Token issuance latency", IssueLatencyBuckets, func(s Snapshot) HistogramSummary {
		return s.TokenIssueLatency
	})
	histogramFunc("encrypt_latency_microseconds", "Message encryption latency", LatencyBuckets, func(s Snapshot) HistogramSummary {
		return s.EncryptLatency
	})
	histogramFunc("decrypt_latency_microseconds", "Message decryption latency", LatencyBuckets, func(s Snapshot) HistogramSummary {
		return s.DecryptLatency
	})
	histogramFunc("batch_latency_microseconds", "Batched/parallel derivation latency", BatchLatencyBuckets, func(s Snapshot) HistogramSummary {
		return s.BatchLatency
	})

	return &PrometheusExporter{collector: c, registry: reg}
}

// Handler returns an http.Handler serving this exporter's registry in
// Prometheus text exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServePrometheus starts an HTTP server serving Prometheus metrics at
// /metrics. This is a convenience function for simple use cases; production
// deployments should mount Handler() on their own mux alongside other
// endpoints.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	exp := NewPrometheusExporter(c, namespace)
	mux := http.NewServeMux()
	mux.Handle("/metrics", exp.Handler())
	return http.ListenAndServe(addr, mux)
}
