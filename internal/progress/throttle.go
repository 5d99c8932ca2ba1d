package progress

import (
	"time"

	"media-converter/internal/media"
)

// DefaultInterval is the minimum spacing between emitted events.
const DefaultInterval = 150 * time.Millisecond

// Throttle forwards at most one event per interval. An event arriving too
// early is held and replaced by newer ones until Tick or Flush sends it.
// It is not safe for concurrent use; Monitor serializes access.
type Throttle struct {
	interval time.Duration
	emit     func(media.ConversionProgress)

	lastEmit time.Time
	pending  *media.ConversionProgress
}

// NewThrottle creates a Throttle calling emit. A non-positive interval uses
// DefaultInterval.
func NewThrottle(interval time.Duration, emit func(media.ConversionProgress)) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttle{interval: interval, emit: emit}
}

// Offer emits p immediately if the interval has elapsed, otherwise holds it.
func (t *Throttle) Offer(now time.Time, p media.ConversionProgress) bool {
	if t.lastEmit.IsZero() || now.Sub(t.lastEmit) >= t.interval {
		t.send(now, p)
		return true
	}
	t.pending = &p
	return false
}

// Tick emits the held event once the interval has elapsed.
func (t *Throttle) Tick(now time.Time) bool {
	if t.pending == nil || now.Sub(t.lastEmit) < t.interval {
		return false
	}
	t.send(now, *t.pending)
	return true
}

// Flush emits the held event regardless of the interval.
func (t *Throttle) Flush(now time.Time) bool {
	if t.pending == nil {
		return false
	}
	t.send(now, *t.pending)
	return true
}

// Force emits p immediately and discards anything held.
func (t *Throttle) Force(now time.Time, p media.ConversionProgress) {
	t.send(now, p)
}

func (t *Throttle) send(now time.Time, p media.ConversionProgress) {
	t.pending = nil
	t.lastEmit = now
	if t.emit != nil {
		t.emit(p)
	}
}
