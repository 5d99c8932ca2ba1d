package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/metrics"
)

// Prober extracts MediaInfo from a file.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.MediaInfo, error)
}

// Client runs ffprobe and parses its JSON output.
type Client struct {
	binary string
}

// NewClient creates a Client for the given ffprobe binary. An empty binary
// means "ffprobe" from PATH.
func NewClient(binary string) *Client {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Client{binary: binary}
}

// Probe runs a single ffprobe JSON call against path and returns the
// normalized metadata.
func (c *Client) Probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	start := time.Now()
	info, err := c.probe(ctx, path)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())
	metrics.ProbeRequestsTotal.WithLabelValues(probeStatus(err)).Inc()
	return info, err
}

func (c *Client) probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	cmd := exec.CommandContext(ctx, c.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := strings.TrimSpace(stderr.String())
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return nil, &Error{Kind: ErrExecutionFailed, Path: path, Detail: truncate(detail, maxRawOutput), Err: err}
		}
		return nil, &Error{Kind: ErrToolUnavailable, Path: path, Err: err}
	}

	info, err := ParseJSON(stdout.Bytes())
	if err != nil {
		logging.Debug("ffprobe output for %s could not be parsed: %v", path, err)
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = path
			raw := "output: " + truncate(stdout.String(), maxRawOutput)
			if perr.Detail != "" {
				raw = perr.Detail + "; " + raw
			}
			perr.Detail = raw
		}
		return nil, err
	}

	info.Path = path
	if fi, statErr := os.Stat(path); statErr == nil {
		info.Size = fi.Size()
	}

	logging.Debug("Probed %s: %dx%d %s, duration=%v, frames=%v, audio=%d, subtitles=%d",
		path, info.Width, info.Height, info.VideoCodec, deref(info.Duration), deref(info.TotalFrames),
		len(info.AudioTracks), len(info.SubtitleTracks))

	return info, nil
}

// CheckAvailable runs "ffprobe -version" to confirm the binary works.
func (c *Client) CheckAvailable(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, c.binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v", ErrToolUnavailable, err)
	}
	return nil
}

func probeStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrToolUnavailable):
		return "tool_unavailable"
	case errors.Is(err, ErrMalformedOutput):
		return "malformed_output"
	default:
		return "execution_failed"
	}
}

func deref[T any](p *T) any {
	if p == nil {
		return "unknown"
	}
	return *p
}
