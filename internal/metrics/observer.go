package metrics

import "media-converter/internal/transcoder"

// conversionObserver implements transcoder.Observer using the Prometheus
// metrics declared in this package.
type conversionObserver struct{}

// NewConversionObserver creates an observer that records conversion
// metrics into the counters and gauges declared in metrics.go.
func NewConversionObserver() transcoder.Observer {
	return &conversionObserver{}
}

func (o *conversionObserver) ObserveQueued(delta int) {
	ConversionJobsQueued.Add(float64(delta))
}

func (o *conversionObserver) ObserveRunning(delta int) {
	ConversionJobsInProgress.Add(float64(delta))
}

func (o *conversionObserver) ObserveFinished(status string, durationSeconds float64) {
	ConversionJobsTotal.WithLabelValues(status).Inc()
	ConversionJobDuration.Observe(durationSeconds)
}

func (o *conversionObserver) ObserveCancellation(outcome string) {
	CancellationsTotal.WithLabelValues(outcome).Inc()
}

func (o *conversionObserver) ObserveProgressEvent() {
	ProgressEventsTotal.Inc()
}

func (o *conversionObserver) ObserveDiagnosticLine() {
	DiagnosticLinesTotal.Inc()
}
