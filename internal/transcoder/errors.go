package transcoder

import (
	"errors"
	"fmt"
)

var (
	// ErrToolUnavailable means the ffmpeg binary is missing or not executable.
	ErrToolUnavailable = errors.New("ffmpeg is not available")
	// ErrSpawnFailed means the process could not be started for another reason.
	ErrSpawnFailed = errors.New("failed to start ffmpeg")
	// ErrExecutionFailed means ffmpeg ran and exited with a non-zero status.
	ErrExecutionFailed = errors.New("ffmpeg exited with an error")
	// ErrCancelled means the job was stopped on request.
	ErrCancelled = errors.New("conversion cancelled")
	// ErrNotFound means no running job has the given id.
	ErrNotFound = errors.New("job not found")
	// ErrJobExists means a job with the same id is already queued or running.
	ErrJobExists = errors.New("job already exists")
	// ErrInvalidOptions wraps a rejected options record.
	ErrInvalidOptions = errors.New("invalid conversion options")
	// ErrShutdown means the manager no longer accepts jobs.
	ErrShutdown = errors.New("conversion manager is shut down")
	// ErrStreamConsumed is returned when the diagnostic stream was already taken.
	ErrStreamConsumed = errors.New("diagnostic stream already consumed")
)

// ExitError describes a non-zero ffmpeg exit. Diagnostics holds the last
// lines ffmpeg wrote to stderr.
type ExitError struct {
	JobID       string
	ExitCode    int
	Diagnostics string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("ffmpeg exited with code %d", e.ExitCode)
	if e.ExitCode < 0 {
		msg = "ffmpeg was terminated by a signal"
	}
	if e.Diagnostics != "" {
		msg += ": " + e.Diagnostics
	}
	return msg
}

// Unwrap lets errors.Is match ErrExecutionFailed.
func (e *ExitError) Unwrap() error {
	return ErrExecutionFailed
}
