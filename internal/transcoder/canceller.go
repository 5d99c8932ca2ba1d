package transcoder

import (
	"errors"
	"fmt"
	"os"
	"time"

	"media-converter/internal/logging"
)

// DefaultCancelGrace is how long a process gets to exit after SIGTERM.
const DefaultCancelGrace = 3 * time.Second

// Canceller stops running jobs, first politely and then by force.
type Canceller struct {
	registry *Registry
	grace    time.Duration
}

// NewCanceller creates a Canceller over registry. A non-positive grace
// uses DefaultCancelGrace.
func NewCanceller(registry *Registry, grace time.Duration) *Canceller {
	if grace <= 0 {
		grace = DefaultCancelGrace
	}
	return &Canceller{registry: registry, grace: grace}
}

// Cancel terminates the job registered under jobID. It returns ErrNotFound
// without touching any process when the id is unknown. Otherwise it marks
// the job cancelled, sends SIGTERM, and sends SIGKILL if the process has
// not been reaped within the grace period. The registry entry is left for
// the process owner to remove when Wait returns.
func (c *Canceller) Cancel(jobID string) error {
	p, ok := c.registry.Get(jobID)
	if !ok {
		observe().ObserveCancellation("not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	log := logging.Job(jobID)
	p.markCancelled()

	if !gracefulTermination {
		if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			log.Warn("kill failed: %v", err)
		}
		observe().ObserveCancellation("forced")
		return nil
	}

	log.Info("Stopping conversion (pid %d)", p.Pid())
	if err := p.interrupt(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Debug("SIGTERM failed: %v", err)
	}

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-p.Done():
		observe().ObserveCancellation("graceful")
		return nil
	case <-timer.C:
	}

	log.Warn("Process did not exit within %s, killing", c.grace)
	if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("kill failed: %v", err)
	}
	observe().ObserveCancellation("forced")
	return nil
}
