package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is bumped whenever runMigrations learns a new step.
const schemaVersion = 1

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Database stores conversion history and cached probe results.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (and creates if needed) the database at dbPath. dbPath is the
// database FILE; its parent directory must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Conversion history; timestamps are unix milliseconds
	CREATE TABLE IF NOT EXISTS conversions (
		id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		options TEXT,
		result TEXT,
		created_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_created ON conversions(created_at);
	CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);

	-- Probe results keyed by path, size and mtime digest
	CREATE TABLE IF NOT EXISTS probe_cache (
		key TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		info TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_probe_cache_path ON probe_cache(path);
	CREATE INDEX IF NOT EXISTS idx_probe_cache_created ON probe_cache(created_at);

	-- Metadata table
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err := d.runMigrations(ctx); err != nil {
		return err
	}
	return d.markInterrupted(ctx)
}

// markInterrupted closes out history rows left open by a previous process
// that exited mid-conversion; they will never receive a result.
func (d *Database) markInterrupted(ctx context.Context) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE conversions SET status = ?
		WHERE status = ?
	`, StatusInterrupted, StatusQueued)
	if err != nil {
		return fmt.Errorf("failed to mark interrupted conversions: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logging.Info("Marked %d unfinished conversions as interrupted", n)
	}
	return nil
}

// runMigrations brings an older database up to schemaVersion.
func (d *Database) runMigrations(ctx context.Context) error {
	current := 0
	value, err := d.GetMetadata(ctx, "schema_version")
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	default:
		if current, err = strconv.Atoi(value); err != nil {
			return fmt.Errorf("invalid schema version %q: %w", value, err)
		}
	}

	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}
	if current == schemaVersion {
		return nil
	}

	logging.Info("Database schema at version %d", schemaVersion)
	return d.SetMetadata(ctx, "schema_version", strconv.Itoa(schemaVersion))
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// GetStats counts history rows by status and cached probe entries. It
// implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_stats", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	stats := metrics.Stats{ConversionsByStatus: make(map[string]int)}

	rows, err := d.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM conversions GROUP BY status")
	if err != nil {
		logging.Warn("failed to count conversions: %v", err)
		return stats
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err = rows.Scan(&status, &n); err != nil {
			logging.Warn("failed to scan conversion count: %v", err)
			return stats
		}
		stats.ConversionsByStatus[status] = n
	}
	if err = rows.Err(); err != nil {
		return stats
	}

	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM probe_cache").Scan(&stats.ProbeCacheEntries); err != nil {
		logging.Warn("failed to count probe cache entries: %v", err)
	}
	return stats
}

// Vacuum optimizes the database.
func (d *Database) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		if path == dbPath {
			continue
		}
		if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", path, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", path)
		}
	}

	return nil
}
