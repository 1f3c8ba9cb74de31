package metrics

import (
	"time"

	"github.com/kdflabs/hkds-go/pkg/hkds"
)

// HKDSObserver implements hkds.Observer and records every hook into a
// Collector plus a structured Logger, the way PoolMetricsObserver bridges
// pool lifecycle events into the same two sinks in the teacher's
// pkg/metrics package.
type HKDSObserver struct {
	collector *Collector
	logger    *Logger
}

// NewHKDSObserver builds an observer backed by c (or the global collector,
// if c is nil) and logger, named "hkds". Pass NullLogger() to silence
// per-operation log lines while still recording metrics.
func NewHKDSObserver(c *Collector, logger *Logger) *HKDSObserver {
	if c == nil {
		c = Global()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &HKDSObserver{collector: c, logger: logger.Named("hkds")}
}

var _ hkds.Observer = (*HKDSObserver)(nil)

// OnTokenIssued implements hkds.Observer.
func (o *HKDSObserver) OnTokenIssued(d time.Duration) {
	o.collector.TokenIssued()
	o.collector.RecordTokenIssueLatency(d)
	o.logger.Debug("token issued", Fields{"latency_us": d.Microseconds()})
}

// OnTokenDecrypted implements hkds.Observer.
func (o *HKDSObserver) OnTokenDecrypted(d time.Duration) {
	o.logger.Debug("token decrypted", Fields{"latency_us": d.Microseconds()})
}

// OnTokenAuthFailed implements hkds.Observer.
func (o *HKDSObserver) OnTokenAuthFailed() {
	o.collector.TokenAuthFailed()
	o.logger.Warn("token authentication failed")
}

// OnMessageEncrypted implements hkds.Observer.
func (o *HKDSObserver) OnMessageEncrypted(d time.Duration) {
	o.collector.MessageEncrypted()
	o.collector.RecordEncryptLatency(d)
}

// OnMessageDecrypted implements hkds.Observer.
func (o *HKDSObserver) OnMessageDecrypted(d time.Duration) {
	o.collector.MessageDecrypted()
	o.collector.RecordDecryptLatency(d)
}

// OnMessageAuthFailed implements hkds.Observer.
func (o *HKDSObserver) OnMessageAuthFailed() {
	o.collector.MessageAuthFailed()
	o.logger.Warn("message authentication failed")
}

// OnCacheExhausted implements hkds.Observer.
func (o *HKDSObserver) OnCacheExhausted() {
	o.collector.CacheExhausted()
	o.logger.Info("transaction key cache exhausted")
}

// OnCacheRefilled implements hkds.Observer.
func (o *HKDSObserver) OnCacheRefilled() {
	o.collector.CacheRefilled()
	o.logger.Info("transaction key cache refilled")
}

// OnBatchX8 implements hkds.Observer.
func (o *HKDSObserver) OnBatchX8(d time.Duration) {
	o.collector.BatchX8Operation()
	o.collector.RecordBatchLatency(d)
}

// OnBatchX64 implements hkds.Observer.
func (o *HKDSObserver) OnBatchX64(d time.Duration) {
	o.collector.BatchX64Operation()
	o.collector.RecordBatchLatency(d)
}
