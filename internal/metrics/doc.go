// Package metrics provides Prometheus instrumentation for media-converter.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_converter_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests being served
//   - WebSocketSubscribers: Gauge of connected progress streams
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - ConversionHistoryTotal: Gauge of history rows by status
//   - ProbeCacheEntries: Gauge of cached probe results
//
// ## Probe Metrics
//
//   - ProbeRequestsTotal: Counter of ffprobe runs by result
//   - ProbeDuration: Histogram of ffprobe run time
//   - ProbeCacheHits / ProbeCacheMisses: Counters for the probe cache
//
// ## Capability Metrics
//
//   - EncoderAvailable: Gauge per hardware encoder family (1 = available)
//   - CapabilityDetectionsTotal: Counter of encoder listing runs by result
//
// ## Conversion Metrics
//
//   - ConversionJobsTotal: Counter by final status
//   - ConversionJobDuration: Histogram of job wall-clock time
//   - ConversionJobsInProgress / ConversionJobsQueued: Gauges
//   - CancellationsTotal: Counter by outcome (graceful, forced, not_found)
//   - ProgressEventsTotal: Counter of emitted progress events
//   - DiagnosticLinesTotal: Counter of non-progress stderr lines
//
// The conversion metrics are recorded through [NewConversionObserver],
// which the transcoder package calls through its Observer interface:
//
//	transcoder.SetObserver(metrics.NewConversionObserver())
//
// ## Preview Metrics
//
//   - PreviewGenerationsTotal: Counter by result
//   - PreviewGenerationDuration: Histogram of frame extraction time
//
// # Collector
//
// [Collector] periodically reads history and cache counts from a
// [StatsProvider] (the database) and updates the corresponding gauges:
//
//	collector := metrics.NewCollector(db, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Failure ratio over the last hour:
//
//	sum(rate(media_converter_jobs_total{status!="success"}[1h])) /
//	sum(rate(media_converter_jobs_total[1h]))
//
// Share of cancellations that needed SIGKILL:
//
//	rate(media_converter_cancellations_total{outcome="forced"}[1h]) /
//	rate(media_converter_cancellations_total{outcome=~"graceful|forced"}[1h])
//
// Probe cache hit rate:
//
//	rate(media_converter_probe_cache_hits_total[5m]) /
//	(rate(media_converter_probe_cache_hits_total[5m]) + rate(media_converter_probe_cache_misses_total[5m]))
package metrics
