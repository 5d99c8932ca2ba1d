package transcoder

// Observer records conversion metrics. The implementation lives in the
// metrics package so this package does not depend on Prometheus.
type Observer interface {
	// ObserveQueued adjusts the number of jobs waiting for a worker slot.
	ObserveQueued(delta int)
	// ObserveRunning adjusts the number of conversions in progress.
	ObserveRunning(delta int)
	// ObserveFinished records a terminal result. status is one of the
	// media.FailureReason status labels.
	ObserveFinished(status string, durationSeconds float64)
	// ObserveCancellation records the outcome of a cancel request:
	// "graceful", "forced" or "not_found".
	ObserveCancellation(outcome string)
	// ObserveProgressEvent counts events handed to listeners.
	ObserveProgressEvent()
	// ObserveDiagnosticLine counts stderr lines that were not progress.
	ObserveDiagnosticLine()
}

// defaultObserver is set once at startup. Nil means metrics are skipped,
// which is what tests get.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
func SetObserver(o Observer) {
	defaultObserver = o
}

type noopObserver struct{}

func (noopObserver) ObserveQueued(int)               {}
func (noopObserver) ObserveRunning(int)              {}
func (noopObserver) ObserveFinished(string, float64) {}
func (noopObserver) ObserveCancellation(string)      {}
func (noopObserver) ObserveProgressEvent()           {}
func (noopObserver) ObserveDiagnosticLine()          {}

func observe() Observer {
	if defaultObserver == nil {
		return noopObserver{}
	}
	return defaultObserver
}
