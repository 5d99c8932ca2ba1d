// Package transcoder runs ffmpeg conversions as supervised subprocesses.
//
// It provides:
//   - A Registry of running jobs keyed by id (the live-job table)
//   - A Supervisor that spawns ffmpeg, hands out its stderr once and
//     removes the registry entry when the process is reaped
//   - A Canceller that sends SIGTERM to the process group and escalates
//     to SIGKILL after a grace period
//   - A Manager that ties command building, progress monitoring and
//     cancellation together, synchronously with Convert or queued behind
//     a worker limit with Start
//
// ffmpeg must be installed; its path is configurable.
package transcoder
