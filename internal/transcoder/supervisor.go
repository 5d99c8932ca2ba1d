package transcoder

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"media-converter/internal/logging"
)

// ExitStatus is the outcome of waiting on a process. Code is the exit code,
// or -1 when the process was killed by a signal. Err is set when waiting
// itself failed.
type ExitStatus struct {
	Code int
	Err  error
}

// Success reports a clean zero exit.
func (s ExitStatus) Success() bool {
	return s.Err == nil && s.Code == 0
}

// Process is one supervised ffmpeg run.
type Process struct {
	jobID    string
	cmd      *exec.Cmd
	registry *Registry

	mu   sync.Mutex
	proc *os.Process

	stderr      *os.File
	stderrTaken atomic.Bool
	cancelled   atomic.Bool

	waitOnce sync.Once
	status   ExitStatus
	done     chan struct{}
}

// JobID returns the id the process was registered under.
func (p *Process) JobID() string {
	return p.jobID
}

// Pid returns the operating system process id.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == nil {
		return 0
	}
	return p.proc.Pid
}

// Stderr hands out the read end of the diagnostic stream. It can be taken
// once; the caller owns it and must close it.
func (p *Process) Stderr() (io.ReadCloser, error) {
	if !p.stderrTaken.CompareAndSwap(false, true) {
		return nil, ErrStreamConsumed
	}
	return p.stderr, nil
}

// Done is closed after Wait has reaped the process and removed it from the
// registry.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Cancelled reports whether a cancel request reached this process.
func (p *Process) Cancelled() bool {
	return p.cancelled.Load()
}

func (p *Process) markCancelled() {
	p.cancelled.Store(true)
}

// Wait blocks until the process exits and returns its status. The registry
// entry is removed before Wait returns. Repeated calls return the same
// status.
func (p *Process) Wait() ExitStatus {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		switch {
		case err == nil:
			p.status = ExitStatus{Code: 0}
		case errors.As(err, &exitErr):
			p.status = ExitStatus{Code: exitErr.ExitCode()}
		default:
			p.status = ExitStatus{Code: -1, Err: err}
		}

		// Nobody read the stream; close it so the descriptor is not leaked.
		if p.stderrTaken.CompareAndSwap(false, true) {
			_ = p.stderr.Close()
		}

		p.registry.remove(p)
		close(p.done)
	})
	return p.status
}

// Release kills the process if it is still running and reaps it. It is a
// no-op after Wait returned.
func (p *Process) Release() {
	select {
	case <-p.done:
		return
	default:
	}
	if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		logging.Job(p.jobID).Debug("release kill: %v", err)
	}
	p.Wait()
}

func (p *Process) interrupt() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == nil {
		return os.ErrProcessDone
	}
	return interruptProcess(p.proc)
}

func (p *Process) kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.proc == nil {
		return os.ErrProcessDone
	}
	return killProcess(p.proc)
}

// Supervisor starts ffmpeg processes and keeps them in a Registry.
type Supervisor struct {
	binary   string
	registry *Registry
}

// NewSupervisor creates a Supervisor for the given ffmpeg binary. An empty
// binary means "ffmpeg" from PATH.
func NewSupervisor(binary string, registry *Registry) *Supervisor {
	if binary == "" {
		binary = "ffmpeg"
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Supervisor{binary: binary, registry: registry}
}

// Registry returns the live-job table.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Spawn starts ffmpeg with args and registers it under jobID before
// returning. The process's stderr is an os.Pipe so it can be read while
// another goroutine waits for exit.
func (s *Supervisor) Spawn(jobID string, args []string) (*Process, error) {
	cmd := exec.Command(s.binary, args...)
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: create stderr pipe: %w", ErrSpawnFailed, err)
	}
	cmd.Stderr = pw

	p := &Process{
		jobID:    jobID,
		cmd:      cmd,
		registry: s.registry,
		stderr:   pr,
		done:     make(chan struct{}),
	}

	// Hold p.mu across registration and start so a concurrent cancel sees
	// either no entry or a started process.
	p.mu.Lock()
	if err := s.registry.add(p); err != nil {
		p.mu.Unlock()
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		s.registry.remove(p)
		p.mu.Unlock()
		_ = pr.Close()
		_ = pw.Close()
		return nil, classifyStartError(s.binary, err)
	}
	p.proc = cmd.Process
	p.mu.Unlock()

	// The child holds its own copy of the write end.
	_ = pw.Close()

	logging.Job(jobID).Debug("started %s (pid %d)", s.binary, cmd.Process.Pid)
	return p, nil
}

// Terminate kills the process registered under jobID without a grace
// period. The entry is removed once the owner's Wait returns.
func (s *Supervisor) Terminate(jobID string) error {
	p, ok := s.registry.Get(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	p.markCancelled()
	if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill job %s: %w", jobID, err)
	}
	return nil
}

// Active returns the ids of all running jobs.
func (s *Supervisor) Active() []string {
	return s.registry.IDs()
}

// Cleanup kills every running process. Used at shutdown.
func (s *Supervisor) Cleanup() {
	for _, p := range s.registry.snapshot() {
		logging.Info("Killing conversion process for job: %s", p.jobID)
		p.markCancelled()
		if err := p.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			logging.Warn("failed to kill conversion process for %s: %v", p.jobID, err)
		}
	}
}

func classifyStartError(binary string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s: %w", ErrToolUnavailable, binary, err)
	}
	return fmt.Errorf("%w: %w", ErrSpawnFailed, err)
}
