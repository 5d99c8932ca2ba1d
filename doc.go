// Package main provides the entry point for the media converter service.
//
// The service wraps ffmpeg and ffprobe behind an HTTP API: it probes media
// files, reports hardware encoder support, runs conversions with live
// progress over WebSockets, keeps a conversion history and renders preview
// frames.
//
// # Application Lifecycle
//
//  1. Configuration Loading: Reads environment variables and validates directories
//  2. Metrics: Registers Prometheus collectors and the conversion observer
//  3. Database Initialization: Opens the SQLite history and probe cache,
//     marking conversions left queued by a previous run as interrupted
//  4. Tool Checks: Runs ffmpeg and ffprobe once and lists hardware encoders
//  5. Housekeeping: Removes stale sidecar progress files and expired probe
//     cache entries
//  6. HTTP Server Setup: Registers routes and middleware and starts serving
//  7. Graceful Shutdown: Handles SIGINT/SIGTERM and stops running conversions
//
// # Background Services
//
//   - Conversion workers: Run queued conversions, bounded by CONVERT_WORKERS
//   - Metrics Collector: Updates database gauges every minute
//   - Probe Cache Pruning: Removes entries older than PROBE_CACHE_TTL daily
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080): the /api endpoints, WebSocket
//     event streams and health checks
//  2. Metrics Server (default port 9090, optional): Prometheus metrics (/metrics)
//
// # Graceful Shutdown
//
//  1. Stop accepting new HTTP requests (30s timeout)
//  2. Cancel queued and running conversions and wait for their results
//  3. Stop the metrics collector and metrics server
//  4. Close the database
//
// # Related Packages
//
//   - [media-converter/internal/transcoder]: ffmpeg process supervision and job management
//   - [media-converter/internal/probe]: ffprobe metadata extraction
//   - [media-converter/internal/handlers]: HTTP and WebSocket handlers
//   - [media-converter/internal/database]: SQLite history and probe cache
//   - [media-converter/internal/startup]: Configuration and initialization
//
// The convert command in cmd/convert runs single conversions from a terminal.
package main
