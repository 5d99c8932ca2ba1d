// Package capability discovers what the installed ffmpeg can do: which
// hardware encoder families it was built with, which container formats
// it can write, and whether ffmpeg and ffprobe run at all.
//
// Detection is a best-effort hint. A listed encoder can still fail at
// runtime when the matching GPU or driver is missing.
package capability
