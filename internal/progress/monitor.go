package progress

import (
	"os"
	"sync"
	"time"

	"media-converter/internal/media"
)

// DefaultPollInterval is how often a sidecar file is re-read.
const DefaultPollInterval = 250 * time.Millisecond

// Config configures a Monitor.
type Config struct {
	JobID           string
	TotalFrames     int64
	DurationSeconds float64
	Window          time.Duration
	Interval        time.Duration
	// Emit receives events in order. It is called with the monitor's lock
	// held and must not block.
	Emit func(media.ConversionProgress)
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// Monitor combines an Estimator and a Throttle behind a mutex so samples
// from the stderr reader and the sidecar poller can be fed concurrently.
type Monitor struct {
	mu       sync.Mutex
	now      func() time.Time
	est      *Estimator
	throttle *Throttle
	emitted  int
	finished bool
}

// NewMonitor creates a Monitor for one job.
func NewMonitor(cfg Config) *Monitor {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	m := &Monitor{now: now}
	m.est = NewEstimator(cfg.JobID, cfg.TotalFrames, cfg.DurationSeconds, cfg.Window, now())
	m.throttle = NewThrottle(cfg.Interval, func(p media.ConversionProgress) {
		m.emitted++
		if cfg.Emit != nil {
			cfg.Emit(p)
		}
	})
	return m
}

// Observe feeds a sample. It returns false for samples the estimator
// dropped or after Finish.
func (m *Monitor) Observe(s Sample) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return false
	}
	now := m.now()
	p, ok := m.est.Observe(now, s)
	if !ok {
		return false
	}
	m.throttle.Offer(now, p)
	return true
}

// Run emits held events on the throttle cadence until stop is closed.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.throttle.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.finished {
				m.throttle.Tick(m.now())
			}
			m.mu.Unlock()
		}
	}
}

// Finish ends the monitor. When completed is true the terminal 100% event
// replaces any held sample; otherwise the held sample is flushed. Later
// samples are ignored.
func (m *Monitor) Finish(completed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finished {
		return
	}
	m.finished = true
	now := m.now()
	if completed {
		m.throttle.Force(now, m.est.Complete(now))
		return
	}
	m.throttle.Flush(now)
}

// Last returns the latest computed event.
func (m *Monitor) Last() (media.ConversionProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.est.Last()
}

// Emitted returns how many events were sent.
func (m *Monitor) Emitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitted
}

// PollSidecar re-reads path every interval, parses it from scratch and
// passes valid samples to observe. After stop is closed it reads the file
// one last time so the final report is not missed.
func PollSidecar(path string, interval time.Duration, stop <-chan struct{}, observe func(Sample)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	read := func() {
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return
		}
		if s, ok := ParseKeyValues(data); ok {
			observe(s)
		}
	}

	for {
		select {
		case <-stop:
			read()
			return
		case <-ticker.C:
			read()
		}
	}
}
