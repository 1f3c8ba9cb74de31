// Package metrics provides observability primitives for the HKDS key
// derivation library.
//
// The package includes:
//   - Atomic counters and a Histogram metric type
//   - Prometheus-compatible metrics export
//   - OpenTelemetry tracing support
//   - Structured logging with levels
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from server and client derivation
// operations.
type Collector struct {
	// Token metrics
	tokensIssued       atomic.Uint64
	tokenAuthFailures  atomic.Uint64
	tokenIssueLatency  *Histogram

	// Message metrics
	messagesEncrypted       atomic.Uint64
	messagesDecrypted       atomic.Uint64
	messageAuthFailures     atomic.Uint64
	cacheExhaustions        atomic.Uint64
	cacheRefills            atomic.Uint64
	encryptLatency          *Histogram
	decryptLatency          *Histogram

	// Batch/parallel derivation metrics
	batchX8Operations  atomic.Uint64
	batchX64Operations atomic.Uint64
	batchLatency       *Histogram

	// Error metrics
	entropyFailures atomic.Uint64
	configErrors    atomic.Uint64

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		tokenIssueLatency: NewHistogram(IssueLatencyBuckets),
		encryptLatency:    NewHistogram(LatencyBuckets),
		decryptLatency:    NewHistogram(LatencyBuckets),
		batchLatency:      NewHistogram(BatchLatencyBuckets),
		createdAt:         time.Now(),
		labels:            labels,
	}
}

// Default bucket configurations for histograms.
var (
	// IssueLatencyBuckets for token-issuance duration (microseconds).
	IssueLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

	// LatencyBuckets for scalar encrypt/decrypt operations (microseconds).
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

	// BatchLatencyBuckets for x8/x64 batched operations (microseconds).
	BatchLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
)

// --- Token Metrics ---

// TokenIssued records a successful encrypt_token call.
func (c *Collector) TokenIssued() {
	c.tokensIssued.Add(1)
}

// TokenAuthFailed records a token MAC mismatch observed by a client's
// decrypt_token call.
func (c *Collector) TokenAuthFailed() {
	c.tokenAuthFailures.Add(1)
}

// RecordTokenIssueLatency records how long encrypt_token took.
func (c *Collector) RecordTokenIssueLatency(d time.Duration) {
	c.tokenIssueLatency.Observe(float64(d.Microseconds()))
}

// --- Message Metrics ---

// MessageEncrypted records a successful encrypt_message or
// encrypt_authenticate_message call.
func (c *Collector) MessageEncrypted() {
	c.messagesEncrypted.Add(1)
}

// MessageDecrypted records a successful decrypt_message or
// decrypt_verify_message call.
func (c *Collector) MessageDecrypted() {
	c.messagesDecrypted.Add(1)
}

// MessageAuthFailed records a message MAC mismatch observed by
// decrypt_verify_message.
func (c *Collector) MessageAuthFailed() {
	c.messageAuthFailures.Add(1)
}

// CacheExhausted records a client encrypt call that found no cached
// transaction keys.
func (c *Collector) CacheExhausted() {
	c.cacheExhaustions.Add(1)
}

// CacheRefilled records a successful generate_cache call.
func (c *Collector) CacheRefilled() {
	c.cacheRefills.Add(1)
}

// RecordEncryptLatency records client-side message encryption latency.
func (c *Collector) RecordEncryptLatency(d time.Duration) {
	c.encryptLatency.Observe(float64(d.Microseconds()))
}

// RecordDecryptLatency records server-side message decryption latency.
func (c *Collector) RecordDecryptLatency(d time.Duration) {
	c.decryptLatency.Observe(float64(d.Microseconds()))
}

// --- Batch/Parallel Metrics ---

// BatchX8Operation records one eight-way batched derivation call.
func (c *Collector) BatchX8Operation() {
	c.batchX8Operations.Add(1)
}

// BatchX64Operation records one sixty-four-way parallel derivation call.
func (c *Collector) BatchX64Operation() {
	c.batchX64Operations.Add(1)
}

// RecordBatchLatency records a batched or parallel derivation call's
// latency.
func (c *Collector) RecordBatchLatency(d time.Duration) {
	c.batchLatency.Observe(float64(d.Microseconds()))
}

// --- Error Metrics ---

// EntropyFailure records a generate_mdk RNG contract violation.
func (c *Collector) EntropyFailure() {
	c.entropyFailures.Add(1)
}

// ConfigError records a client/server security-mode or CacheSize mismatch.
func (c *Collector) ConfigError() {
	c.configErrors.Add(1)
}

// --- Snapshot ---

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Token metrics
	TokensIssued      uint64
	TokenAuthFailures uint64

	// Message metrics
	MessagesEncrypted   uint64
	MessagesDecrypted   uint64
	MessageAuthFailures uint64
	CacheExhaustions    uint64
	CacheRefills        uint64

	// Batch/parallel metrics
	BatchX8Operations  uint64
	BatchX64Operations uint64

	// Error metrics
	EntropyFailures uint64
	ConfigErrors    uint64

	// Histogram summaries
	TokenIssueLatency HistogramSummary
	EncryptLatency    HistogramSummary
	DecryptLatency    HistogramSummary
	BatchLatency      HistogramSummary

	// Labels
	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.createdAt),
		TokensIssued:        c.tokensIssued.Load(),
		TokenAuthFailures:   c.tokenAuthFailures.Load(),
		MessagesEncrypted:   c.messagesEncrypted.Load(),
		MessagesDecrypted:   c.messagesDecrypted.Load(),
		MessageAuthFailures: c.messageAuthFailures.Load(),
		CacheExhaustions:    c.cacheExhaustions.Load(),
		CacheRefills:        c.cacheRefills.Load(),
		BatchX8Operations:   c.batchX8Operations.Load(),
		BatchX64Operations:  c.batchX64Operations.Load(),
		EntropyFailures:     c.entropyFailures.Load(),
		ConfigErrors:        c.configErrors.Load(),
		TokenIssueLatency:   c.tokenIssueLatency.Summary(),
		EncryptLatency:      c.encryptLatency.Summary(),
		DecryptLatency:      c.decryptLatency.Summary(),
		BatchLatency:        c.batchLatency.Summary(),
		Labels:              c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.tokensIssued.Store(0)
	c.tokenAuthFailures.Store(0)
	c.messagesEncrypted.Store(0)
	c.messagesDecrypted.Store(0)
	c.messageAuthFailures.Store(0)
	c.cacheExhaustions.Store(0)
	c.cacheRefills.Store(0)
	c.batchX8Operations.Store(0)
	c.batchX64Operations.Store(0)
	c.entropyFailures.Store(0)
	c.configErrors.Store(0)
	c.tokenIssueLatency.Reset()
	c.encryptLatency.Reset()
	c.decryptLatency.Reset()
	c.batchLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollectorOnce.Do(func() {})
	globalCollector = c
}
