package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-converter/internal/command"
	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/progress"
)

// DefaultSettleGrace is how long the stderr reader gets to drain after the
// process exited before its pipe is closed underneath it.
const DefaultSettleGrace = 250 * time.Millisecond

// sidecarPattern names progress files in the work directory.
const sidecarPattern = "job-*.progress"

// CapabilitySource reports hardware encoder support. capability.Detector
// implements it.
type CapabilitySource interface {
	DetectOnce(ctx context.Context) media.GpuCapabilities
}

// Prober reads media metadata. probe.Client and probe.CachedProber
// implement it.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.MediaInfo, error)
}

// Publisher receives events for jobs started with Start.
type Publisher interface {
	PublishProgress(p media.ConversionProgress)
	PublishResult(r media.ConversionResult)
}

// History persists jobs started with Start.
type History interface {
	RecordStart(ctx context.Context, opts media.ConversionOptions) error
	RecordResult(ctx context.Context, result *media.ConversionResult) error
}

// Config configures a Manager. Zero durations use the package defaults.
type Config struct {
	FFmpegPath       string
	WorkDir          string
	Workers          int
	ProgressMode     media.ProgressMode
	ProgressInterval time.Duration
	PollInterval     time.Duration
	RateWindow       time.Duration
	CancelGrace      time.Duration
	SettleGrace      time.Duration

	Capabilities CapabilitySource
	Prober       Prober
	Events       Publisher
	History      History
}

// JobState is the lifecycle position of an asynchronous job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
)

// ActiveJob describes a job started with Start that has not finished.
type ActiveJob struct {
	ID         string                    `json:"id"`
	InputPath  string                    `json:"inputPath"`
	OutputPath string                    `json:"outputPath"`
	State      JobState                  `json:"state"`
	QueuedAt   time.Time                 `json:"queuedAt"`
	Progress   *media.ConversionProgress `json:"progress,omitempty"`
}

type job struct {
	seq    uint64
	info   ActiveJob
	opts   media.ConversionOptions
	ctx    context.Context
	cancel context.CancelFunc
}

// Manager runs conversions: it builds the ffmpeg command, supervises the
// process, turns its output into progress events and produces the result.
type Manager struct {
	cfg        Config
	supervisor *Supervisor
	canceller  *Canceller
	sem        chan struct{}

	ctx        context.Context
	stop       context.CancelFunc
	wg         sync.WaitGroup
	dispatched chan struct{}
	wake       chan struct{}

	mu      sync.Mutex
	jobs    map[string]*job
	pending []*job // waiting for a worker, oldest first
	seq     uint64
	closed  bool
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "media-converter")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ProgressMode == "" {
		cfg.ProgressMode = media.ProgressStream
	}
	if cfg.SettleGrace <= 0 {
		cfg.SettleGrace = DefaultSettleGrace
	}

	registry := NewRegistry()
	ctx, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:        cfg,
		supervisor: NewSupervisor(cfg.FFmpegPath, registry),
		canceller:  NewCanceller(registry, cfg.CancelGrace),
		sem:        make(chan struct{}, cfg.Workers),
		ctx:        ctx,
		stop:       stop,
		dispatched: make(chan struct{}),
		wake:       make(chan struct{}, 1),
		jobs:       make(map[string]*job),
	}
	go m.dispatch()
	return m
}

// Supervisor returns the process supervisor.
func (m *Manager) Supervisor() *Supervisor {
	return m.supervisor
}

// Convert runs one conversion and blocks until it finished. onProgress may
// be nil; it is called from the monitor and must not block. Cancelling ctx
// stops the job the same way Cancel does.
//
// Options without Source are probed through the configured Prober so
// progress has totals to work from. A probe failure only costs the totals,
// unless the options need the track list to be built at all.
//
// A result is returned for every job that got past option validation. The
// error is nil only on success and otherwise wraps ErrToolUnavailable,
// ErrSpawnFailed, ErrCancelled, ErrInvalidOptions or an *ExitError.
func (m *Manager) Convert(ctx context.Context, opts media.ConversionOptions, onProgress func(media.ConversionProgress)) (*media.ConversionResult, error) {
	if opts.ProgressMode == "" {
		opts.ProgressMode = m.cfg.ProgressMode
	}
	if err := opts.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	observe().ObserveRunning(1)
	defer observe().ObserveRunning(-1)

	log := logging.Job(opts.ID)
	started := time.Now()
	result := &media.ConversionResult{JobID: opts.ID, StartedAt: started}

	if ctx.Err() != nil {
		return m.finish(result, media.ReasonCancelled, ErrCancelled, started)
	}

	if opts.Source == nil && m.cfg.Prober != nil {
		info, err := m.cfg.Prober.Probe(ctx, opts.InputPath)
		if err != nil {
			log.Warn("Probe failed, progress totals unknown: %v", err)
		} else {
			opts.ApplySource(info)
		}
		if ctx.Err() != nil {
			return m.finish(result, media.ReasonCancelled, ErrCancelled, started)
		}
	}
	if err := opts.CheckSource(); err != nil {
		return m.finish(result, media.ReasonExecution, fmt.Errorf("%w: %v", ErrInvalidOptions, err), started)
	}

	var caps media.GpuCapabilities
	if m.cfg.Capabilities != nil {
		caps = m.cfg.Capabilities.DetectOnce(ctx)
	}

	if opts.ProgressMode == media.ProgressSidecar {
		path, err := m.createSidecar()
		if err != nil {
			return m.finish(result, media.ReasonSpawnFailed, fmt.Errorf("%w: %w", ErrSpawnFailed, err), started)
		}
		opts.SidecarPath = path
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Warn("failed to remove progress file %s: %v", path, err)
			}
		}()
	}

	args := command.BuildArgs(opts, caps)
	log.Debug("ffmpeg %s", strings.Join(args, " "))

	proc, err := m.supervisor.Spawn(opts.ID, args)
	if err != nil {
		if errors.Is(err, ErrJobExists) {
			return nil, err
		}
		reason := media.ReasonSpawnFailed
		if errors.Is(err, ErrToolUnavailable) {
			reason = media.ReasonToolUnavailable
		}
		log.Error("Failed to start conversion: %v", err)
		return m.finish(result, reason, err, started)
	}
	defer proc.Release()

	mon := progress.NewMonitor(progress.Config{
		JobID:           opts.ID,
		TotalFrames:     opts.TotalFrames,
		DurationSeconds: opts.DurationSeconds,
		Window:          m.cfg.RateWindow,
		Interval:        m.cfg.ProgressInterval,
		Emit: func(p media.ConversionProgress) {
			observe().ObserveProgressEvent()
			if onProgress != nil {
				onProgress(p)
			}
		},
	})

	stderr, err := proc.Stderr()
	if err != nil {
		return nil, err
	}
	tail := newLineTail(defaultTailLines)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		m.readDiagnostics(stderr, opts, mon, tail)
	}()

	monitorStop := make(chan struct{})
	go mon.Run(monitorStop)

	pollStop := make(chan struct{})
	pollDone := make(chan struct{})
	if opts.SidecarPath != "" {
		go func() {
			defer close(pollDone)
			progress.PollSidecar(opts.SidecarPath, m.cfg.PollInterval, pollStop, func(s progress.Sample) {
				mon.Observe(s)
			})
		}()
	} else {
		close(pollDone)
	}

	go func() {
		select {
		case <-ctx.Done():
			log.Info("Context done, cancelling: %v", ctx.Err())
			if err := m.canceller.Cancel(opts.ID); err != nil && !errors.Is(err, ErrNotFound) {
				log.Warn("cancel failed: %v", err)
			}
		case <-proc.Done():
		}
	}()

	status := proc.Wait()

	// Give the reader a moment to drain what ffmpeg wrote last.
	settle := time.NewTimer(m.cfg.SettleGrace)
	select {
	case <-readerDone:
	case <-settle.C:
		log.Debug("stderr still open after exit, closing")
		_ = stderr.Close()
		<-readerDone
	}
	settle.Stop()
	_ = stderr.Close()

	close(pollStop)
	<-pollDone
	close(monitorStop)

	cancelled := proc.Cancelled()
	mon.Finish(status.Success() && !cancelled)

	if last, ok := mon.Last(); ok {
		log.Debug("last progress %.1f%% at frame %d", last.Progress*100, last.Frame)
	}

	result.ExitCode = status.Code
	switch {
	case cancelled:
		return m.finish(result, media.ReasonCancelled, ErrCancelled, started)
	case status.Success():
		result.OutputPath = opts.OutputPath
		return m.finish(result, media.ReasonNone, nil, started)
	case status.Err != nil:
		return m.finish(result, media.ReasonExecution, fmt.Errorf("%w: %w", ErrExecutionFailed, status.Err), started)
	default:
		return m.finish(result, media.ReasonExecution, &ExitError{
			JobID:       opts.ID,
			ExitCode:    status.Code,
			Diagnostics: tail.String(),
		}, started)
	}
}

// readDiagnostics drains stderr. In stream mode stats lines become samples;
// everything else goes to the debug log and the tail kept for errors.
func (m *Manager) readDiagnostics(r io.Reader, opts media.ConversionOptions, mon *progress.Monitor, tail *lineTail) {
	log := logging.Job(opts.ID)
	parse := opts.ProgressMode == media.ProgressStream

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(progress.ScanLines)

	for scanner.Scan() {
		line := scanner.Text()
		if parse {
			if s, ok := progress.ParseProgressLine(line); ok {
				mon.Observe(s)
				continue
			}
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		observe().ObserveDiagnosticLine()
		tail.Add(line)
		log.Debug("ffmpeg: %s", line)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		log.Debug("stderr scan stopped: %v", err)
		// Keep draining so ffmpeg never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (m *Manager) finish(result *media.ConversionResult, reason media.FailureReason, err error, started time.Time) (*media.ConversionResult, error) {
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(started).Seconds()
	result.Reason = reason
	result.Success = reason == media.ReasonNone

	log := logging.Job(result.JobID)
	switch reason {
	case media.ReasonNone:
		log.Info("Conversion finished in %.1fs", result.Duration)
	case media.ReasonCancelled:
		result.Error = media.StoppedByUser
		log.Info("Conversion stopped by user after %.1fs", result.Duration)
	default:
		result.Error = err.Error()
		log.Warn("Conversion failed (%s): %v", reason.Status(), err)
	}

	observe().ObserveFinished(reason.Status(), result.Duration)
	return result, err
}

func (m *Manager) createSidecar() (string, error) {
	if err := os.MkdirAll(m.cfg.WorkDir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	f, err := os.CreateTemp(m.cfg.WorkDir, sidecarPattern)
	if err != nil {
		return "", fmt.Errorf("create progress file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close progress file: %w", err)
	}
	return f.Name(), nil
}

// Start queues a conversion and returns its id immediately. An empty id is
// replaced by a random UUID. Jobs get a worker in the order they were
// started. Progress and the final result go to the configured Publisher
// and History.
func (m *Manager) Start(opts media.ConversionOptions) (string, error) {
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.ProgressMode == "" {
		opts.ProgressMode = m.cfg.ProgressMode
	}
	if err := opts.Normalize(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShutdown
	}
	if _, exists := m.jobs[opts.ID]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrJobExists, opts.ID)
	}
	if _, running := m.supervisor.registry.Get(opts.ID); running {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrJobExists, opts.ID)
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.seq++
	j := &job{
		seq: m.seq,
		info: ActiveJob{
			ID:         opts.ID,
			InputPath:  opts.InputPath,
			OutputPath: opts.OutputPath,
			State:      JobQueued,
			QueuedAt:   time.Now(),
		},
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
	m.jobs[opts.ID] = j
	m.wg.Add(1)
	m.mu.Unlock()

	if m.cfg.History != nil {
		if err := m.cfg.History.RecordStart(context.Background(), opts); err != nil {
			logging.Job(opts.ID).Warn("failed to record conversion start: %v", err)
		}
	}

	observe().ObserveQueued(1)
	m.mu.Lock()
	closed := m.closed
	if !closed {
		m.pending = append(m.pending, j)
	}
	m.mu.Unlock()
	if closed {
		// Cleanup started while the start was being recorded.
		go m.drop(j)
		return opts.ID, nil
	}
	m.signal()

	logging.Job(opts.ID).Info("Queued conversion %s -> %s", opts.InputPath, opts.OutputPath)
	return opts.ID, nil
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// dispatch hands queued jobs to workers in the order they were started.
func (m *Manager) dispatch() {
	defer close(m.dispatched)
	for {
		select {
		case m.sem <- struct{}{}:
		case <-m.ctx.Done():
			return
		}
		j := m.next()
		if j == nil {
			<-m.sem
			return
		}
		go m.run(j)
	}
}

// next blocks until a job is pending and takes it off the queue. It
// returns nil once the manager is shutting down and the queue is empty.
func (m *Manager) next() *job {
	for {
		m.mu.Lock()
		if len(m.pending) > 0 {
			j := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()
			return j
		}
		m.mu.Unlock()

		select {
		case <-m.wake:
		case <-m.ctx.Done():
			return nil
		}
	}
}

// run executes a dispatched job on the worker slot it was given.
func (m *Manager) run(j *job) {
	defer m.wg.Done()
	defer j.cancel()

	id := j.info.ID
	observe().ObserveQueued(-1)
	m.setState(id, JobRunning)
	result, _ := m.Convert(j.ctx, j.opts, func(p media.ConversionProgress) {
		m.setProgress(id, p)
		if m.cfg.Events != nil {
			m.cfg.Events.PublishProgress(p)
		}
	})
	<-m.sem

	m.complete(j, result)
}

// drop finishes a job that was taken off the queue before it got a worker.
func (m *Manager) drop(j *job) {
	defer m.wg.Done()
	j.cancel()

	observe().ObserveQueued(-1)
	started := time.Now()
	result, _ := m.finish(&media.ConversionResult{JobID: j.info.ID, StartedAt: started}, media.ReasonCancelled, ErrCancelled, started)
	m.complete(j, result)
}

func (m *Manager) complete(j *job, result *media.ConversionResult) {
	id := j.info.ID
	if result == nil {
		// Convert only returns no result for a duplicate id, which Start
		// already rejected; record it as a spawn failure all the same.
		now := time.Now()
		result = &media.ConversionResult{
			JobID: id, Reason: media.ReasonSpawnFailed, Error: "job could not be started",
			StartedAt: now, FinishedAt: now,
		}
	}

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	if m.cfg.History != nil {
		if err := m.cfg.History.RecordResult(context.Background(), result); err != nil {
			logging.Job(id).Warn("failed to record conversion result: %v", err)
		}
	}
	if m.cfg.Events != nil {
		m.cfg.Events.PublishResult(*result)
	}
}

// unqueue removes j from the pending queue and reports whether it was
// still there. The caller holds m.mu.
func (m *Manager) unqueue(j *job) bool {
	for i, p := range m.pending {
		if p == j {
			m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) setState(id string, state JobState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.info.State = state
	}
}

func (m *Manager) setProgress(id string, p media.ConversionProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		j.info.Progress = &p
	}
}

// Active lists queued and running jobs started with Start, oldest first.
func (m *Manager) Active() []ActiveJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		ordered = append(ordered, j)
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].seq < ordered[b].seq })

	jobs := make([]ActiveJob, 0, len(ordered))
	for _, j := range ordered {
		info := j.info
		if info.Progress != nil {
			p := *info.Progress
			info.Progress = &p
		}
		jobs = append(jobs, info)
	}
	return jobs
}

// Cancel stops a job. A job still waiting for a worker is dropped without
// spawning anything; a running one goes through the Canceller. Unknown ids
// return ErrNotFound.
func (m *Manager) Cancel(jobID string) error {
	if _, running := m.supervisor.registry.Get(jobID); running {
		return m.canceller.Cancel(jobID)
	}

	m.mu.Lock()
	j, known := m.jobs[jobID]
	queued := known && m.unqueue(j)
	m.mu.Unlock()
	if !known {
		return m.canceller.Cancel(jobID)
	}

	logging.Job(jobID).Info("Cancelling queued conversion")
	observe().ObserveCancellation("graceful")
	if queued {
		go m.drop(j)
		return nil
	}
	// Dispatched but not spawned yet: Convert sees the cancelled context.
	j.cancel()
	return nil
}

// Cleanup stops queued jobs, kills running processes and waits for the
// workers to record their results. It is safe to call more than once.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	m.closed = true
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.stop()
	<-m.dispatched
	for _, j := range queued {
		m.drop(j)
	}
	m.supervisor.Cleanup()
	m.wg.Wait()
}

// CleanupSidecars removes progress files left in the work directory by an
// earlier run and returns the number of bytes freed. Files belonging to
// running jobs are skipped.
func (m *Manager) CleanupSidecars() (int64, error) {
	entries, err := os.ReadDir(m.cfg.WorkDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read work directory: %w", err)
	}

	inUse := make(map[string]bool)
	for _, p := range m.supervisor.registry.snapshot() {
		for i, arg := range p.cmd.Args {
			if arg == "-progress" && i+1 < len(p.cmd.Args) {
				inUse[p.cmd.Args[i+1]] = true
			}
		}
	}

	var freedBytes int64
	var removed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(sidecarPattern, entry.Name()); !ok {
			continue
		}
		path := filepath.Join(m.cfg.WorkDir, entry.Name())
		if inUse[path] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("failed to get info for %s: %v", path, err)
			continue
		}
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to remove progress file %s: %v", path, err)
			continue
		}
		freedBytes += info.Size()
		removed++
	}

	if removed > 0 {
		logging.Info("Removed %d stale progress files (%d bytes)", removed, freedBytes)
	}
	return freedBytes, nil
}
