// Package probe extracts normalized media metadata with ffprobe.
//
// Client runs ffprobe once per file with JSON output and converts the
// result with ParseJSON. When a file has several video streams the one
// with the largest width×height is reported, ties going to the first.
// Empty or non-numeric duration and bitrate fields are treated as unknown.
// The total frame count comes from nb_frames, or is derived as
// floor(duration × frame rate), or is left unset.
//
// Failures wrap ErrToolUnavailable, ErrExecutionFailed or
// ErrMalformedOutput in an *Error. CachedProber adds a persistent cache
// keyed on path, size and modification time.
package probe
