package progress

import (
	"math"
	"time"

	"media-converter/internal/media"
)

// runningCap keeps a running job below 100% until completion is
// confirmed by progress=end or a zero exit status.
const runningCap = 0.999

// Estimator turns raw samples into ConversionProgress events with a
// smoothed frame rate, a clamped non-decreasing fraction and an ETA.
// It is not safe for concurrent use; Monitor serializes access.
type Estimator struct {
	jobID       string
	totalFrames int64
	duration    float64
	start       time.Time
	window      *RateWindow

	seen     bool
	lastTime time.Duration
	last     media.ConversionProgress
}

// NewEstimator creates an Estimator. totalFrames and durationSeconds may be
// zero when unknown.
func NewEstimator(jobID string, totalFrames int64, durationSeconds float64, window time.Duration, start time.Time) *Estimator {
	return &Estimator{
		jobID:       jobID,
		totalFrames: totalFrames,
		duration:    durationSeconds,
		start:       start,
		window:      NewRateWindow(window),
		last:        media.ConversionProgress{JobID: jobID, Time: FormatClock(0)},
	}
}

// Observe folds a sample in. It returns false when the sample was dropped
// because it repeats or goes back behind the previous one.
func (e *Estimator) Observe(now time.Time, s Sample) (media.ConversionProgress, bool) {
	if e.seen {
		if s.Frame < e.last.Frame || (s.HasTime && s.OutTime < e.lastTime) {
			return e.last, false
		}
		if s.Frame == e.last.Frame && (!s.HasTime || s.OutTime == e.lastTime) && !s.End {
			return e.last, false
		}
	}

	if s.Frame > 0 {
		e.window.Add(now, s.Frame)
	}
	avg := e.window.Rate(s.FPS)

	outTime := e.lastTime
	if s.HasTime {
		outTime = s.OutTime
	}
	timeSec := outTime.Seconds()

	fraction := e.last.Progress
	switch {
	case e.totalFrames > 0 && s.Frame > 0:
		fraction = float64(s.Frame) / float64(e.totalFrames)
	case e.duration > 0 && s.HasTime:
		fraction = timeSec / e.duration
	}
	limit := runningCap
	if s.End {
		limit = 1
	}
	fraction = math.Max(clamp(fraction, 0, limit), e.last.Progress)

	p := media.ConversionProgress{
		JobID:          e.jobID,
		Frame:          s.Frame,
		FPS:            s.FPS,
		AverageFPS:     avg,
		Time:           FormatClock(outTime),
		TimeSeconds:    timeSec,
		ElapsedSeconds: now.Sub(e.start).Seconds(),
		Bitrate:        s.Bitrate,
		Speed:          s.Speed,
		Progress:       fraction,
		ETASeconds:     e.eta(s, avg, timeSec),
	}

	e.seen = true
	e.lastTime = outTime
	e.last = p
	return p, true
}

// eta prefers the remaining frame count over the smoothed rate and falls
// back to remaining media time scaled by the speed multiplier.
func (e *Estimator) eta(s Sample, avgFPS, timeSec float64) *float64 {
	var remaining float64
	switch {
	case s.End:
		remaining = 0
	case e.totalFrames > 0 && s.Frame > 0 && avgFPS > 0:
		remaining = float64(max(e.totalFrames-s.Frame, 0)) / avgFPS
	case e.duration > 0 && s.HasTime:
		remaining = math.Max(e.duration-timeSec, 0)
		if s.Speed > 0 {
			remaining /= s.Speed
		}
	default:
		return nil
	}
	return &remaining
}

// Complete returns the terminal 100% event for a job whose process exited
// successfully.
func (e *Estimator) Complete(now time.Time) media.ConversionProgress {
	p := e.last
	p.Progress = 1
	zero := 0.0
	p.ETASeconds = &zero
	p.ElapsedSeconds = now.Sub(e.start).Seconds()
	if e.totalFrames > p.Frame {
		p.Frame = e.totalFrames
	}
	if e.duration > p.TimeSeconds {
		p.TimeSeconds = e.duration
		p.Time = FormatClock(time.Duration(e.duration * float64(time.Second)))
	}
	e.last = p
	return p
}

// Last returns the most recent event and whether any sample was accepted.
func (e *Estimator) Last() (media.ConversionProgress, bool) {
	return e.last, e.seen
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
