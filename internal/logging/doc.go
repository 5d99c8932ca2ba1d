// Package logging provides the leveled logger shared by the converter
// service and the convert CLI.
//
// It supports the following log levels:
//   - DEBUG: subprocess diagnostic lines, parsed progress samples
//   - INFO: job lifecycle and startup messages
//   - WARN: recoverable problems (cache misses that fail, stale sidecars)
//   - ERROR: failed jobs and request errors
//   - FATAL: errors that terminate the process
//
// The level comes from LOG_LEVEL, or DEBUG=true as a shortcut, and can be
// overridden at runtime with SetLevel. Job returns a logger that tags each
// line with a conversion job id.
package logging
