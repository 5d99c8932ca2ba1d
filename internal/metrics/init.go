package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, status := range []string{"success", "failed", "cancelled", "spawn_failed", "tool_unavailable"} {
		ConversionJobsTotal.WithLabelValues(status)
		ConversionHistoryTotal.WithLabelValues(status)
	}
	ConversionHistoryTotal.WithLabelValues("queued")
	ConversionHistoryTotal.WithLabelValues("interrupted")

	for _, outcome := range []string{"graceful", "forced", "not_found"} {
		CancellationsTotal.WithLabelValues(outcome)
	}

	for _, status := range []string{"success", "tool_unavailable", "execution_failed", "malformed_output"} {
		ProbeRequestsTotal.WithLabelValues(status)
	}

	for _, family := range []string{"nvenc", "qsv", "vaapi", "videotoolbox", "amf"} {
		EncoderAvailable.WithLabelValues(family)
	}

	for _, status := range []string{"success", "unavailable"} {
		CapabilityDetectionsTotal.WithLabelValues(status)
	}

	for _, status := range []string{"success", "error"} {
		PreviewGenerationsTotal.WithLabelValues(status)
	}
}
