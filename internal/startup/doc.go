// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - FFMPEG_PATH, FFPROBE_PATH: Tool binaries (default: ffmpeg, ffprobe from PATH)
//   - WORK_DIR: Directory for sidecar progress files (default: $TMPDIR/media-converter)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PROGRESS_MODE: stream or sidecar (default: stream)
//   - PROGRESS_INTERVAL: Minimum time between progress events (default: 150ms)
//   - SIDECAR_POLL_INTERVAL: Sidecar re-read interval (default: 250ms)
//   - RATE_WINDOW: Average frame rate window (default: 10s)
//   - CANCEL_GRACE: Time between SIGTERM and SIGKILL (default: 3s)
//   - SETTLE_GRACE: Time to drain stderr after exit (default: 250ms)
//   - CONVERT_WORKERS: Concurrent conversions (default: derived from GOMAXPROCS)
//   - PROBE_CACHE_TTL: Age after which cached probe results are pruned (default: 720h)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// Durations use Go syntax. Invalid values fall back to the default with a
// warning. The database and work directories are created if missing and
// must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogToolsInit]: ffmpeg/ffprobe availability and hardware encoders
//   - [LogConverterInit]: Worker count and progress mode
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
