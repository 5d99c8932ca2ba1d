package probe

import (
	"errors"
	"fmt"
)

// Sentinel errors for the probe failure taxonomy. Match them with errors.Is.
var (
	// ErrToolUnavailable means ffprobe could not be spawned at all.
	ErrToolUnavailable = errors.New("ffprobe unavailable")
	// ErrExecutionFailed means ffprobe ran and exited non-zero.
	ErrExecutionFailed = errors.New("ffprobe execution failed")
	// ErrMalformedOutput means the output was not ffprobe JSON with a
	// streams section.
	ErrMalformedOutput = errors.New("malformed ffprobe output")
)

// maxRawOutput caps how much tool output is copied into error messages.
const maxRawOutput = 512

// Error describes a failed probe of one file.
type Error struct {
	Kind   error
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "probe"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Detail != "" {
		msg += " - " + e.Detail
	}
	return msg
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + fmt.Sprintf("...(%d bytes truncated)", len(s)-limit)
}
