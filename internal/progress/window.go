package progress

import "time"

// DefaultWindow is the span of samples used for the average frame rate.
const DefaultWindow = 10 * time.Second

type ratePoint struct {
	at    time.Time
	frame int64
}

// RateWindow keeps (time, frame) samples from the most recent span and
// derives an average frame rate from them.
type RateWindow struct {
	span   time.Duration
	points []ratePoint
}

// NewRateWindow creates a window covering span. A non-positive span uses
// DefaultWindow.
func NewRateWindow(span time.Duration) *RateWindow {
	if span <= 0 {
		span = DefaultWindow
	}
	return &RateWindow{span: span}
}

// Add records a sample and drops samples older than span relative to it.
func (w *RateWindow) Add(at time.Time, frame int64) {
	w.points = append(w.points, ratePoint{at: at, frame: frame})

	cutoff := at.Add(-w.span)
	drop := 0
	for drop < len(w.points)-1 && w.points[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		w.points = append(w.points[:0], w.points[drop:]...)
	}
}

// Rate returns the slope in frames per second between the oldest and
// newest retained sample, or fallback when fewer than two samples span a
// positive interval.
func (w *RateWindow) Rate(fallback float64) float64 {
	if len(w.points) < 2 {
		return fallback
	}
	oldest, newest := w.points[0], w.points[len(w.points)-1]
	dt := newest.at.Sub(oldest.at).Seconds()
	df := newest.frame - oldest.frame
	if dt <= 0 || df < 0 {
		return fallback
	}
	return float64(df) / dt
}

// Len returns the number of retained samples.
func (w *RateWindow) Len() int {
	return len(w.points)
}
