// Package metrics provides observability primitives for the HKDS key
// derivation library.
//
// # Overview
//
// The metrics package offers a complete observability solution including:
//   - Metrics collection (counters, gauges, histograms)
//   - Prometheus-compatible metrics export
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Structured logging with levels
//
// # Quick Start
//
// Basic usage with global collector:
//
//	import "github.com/kdflabs/hkds-go/pkg/metrics"
//
//	// Record metrics
//	metrics.Global().TokenIssued()
//	metrics.Global().RecordTokenIssueLatency(150 * time.Microsecond)
//	metrics.Global().MessageEncrypted()
//
//	// Start Prometheus server
//	go metrics.ServePrometheus(":9090", metrics.Global(), "hkds")
//
// # Metrics Collection
//
// The Collector type aggregates metrics from server and client derivation
// operations:
//
//	collector := metrics.NewCollector(metrics.Labels{
//		"instance": "node-1",
//		"region":   "us-west-2",
//	})
//
//	// Token metrics
//	collector.TokenIssued()
//	collector.TokenAuthFailed()
//	collector.RecordTokenIssueLatency(d)
//
//	// Message metrics
//	collector.MessageEncrypted()
//	collector.MessageDecrypted()
//	collector.MessageAuthFailed()
//	collector.CacheExhausted()
//	collector.CacheRefilled()
//
//	// Batch/parallel metrics
//	collector.BatchX8Operation()
//	collector.BatchX64Operation()
//
//	// Get snapshot
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
// Export metrics in Prometheus format:
//
//	exporter := metrics.NewPrometheusExporter(collector, "hkds")
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
// The package provides a Tracer interface compatible with OpenTelemetry:
//
//	// Use the simple tracer for testing
//	tracer := metrics.NewSimpleTracer()
//	metrics.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses global provider)
//	otelTracer := metrics.NewOTelTracer("hkds")
//	metrics.SetTracer(otelTracer)
//	// Build with -tags otel to enable the adapter.
//
//	// Start spans
//	ctx, end := metrics.StartSpan(ctx, metrics.SpanTokenIssue)
//	defer end(nil) // or end(err) on error
//
// # Structured Logging
//
// The Logger provides structured logging with levels:
//
//	logger := metrics.NewLogger(
//		metrics.WithLevel(metrics.LevelInfo),
//		metrics.WithFormat(metrics.FormatJSON),
//		metrics.WithFields(metrics.Fields{"service": "hkds"}),
//	)
//
//	logger.Info("token issued", metrics.Fields{
//		"device_id": deviceID,
//		"mode":      "M256",
//	})
//
//	// Child loggers
//	serverLog := logger.Named("server").With(metrics.Fields{"mode": "M256"})
//	serverLog.Debug("deriving transaction key")
package metrics
