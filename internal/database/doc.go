// Package database provides SQLite storage for media-converter.
//
// It holds:
//   - Conversion history (options, terminal result and timestamps per job)
//   - Cached ffprobe results keyed by a digest of path, size and mtime
//   - A small key/value metadata table (schema version, housekeeping times)
//
// The database uses WAL mode for concurrent reads while a job records its
// result, and initializes its schema automatically.
package database
