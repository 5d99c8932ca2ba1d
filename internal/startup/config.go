package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/workers"
)

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	FFmpegPath  string
	FFprobePath string
	WorkDir     string
	DatabaseDir string

	ProgressMode        media.ProgressMode
	ProgressInterval    time.Duration
	SidecarPollInterval time.Duration
	RateWindow          time.Duration
	CancelGrace         time.Duration
	SettleGrace         time.Duration
	Workers             int
	ProbeCacheTTL       time.Duration

	// Derived paths
	DatabasePath string
}

// Defaults shared by the service and the command-line front end.
const (
	DefaultPort                = "8080"
	DefaultMetricsPort         = "9090"
	DefaultDatabaseDir         = "/database"
	DefaultProgressInterval    = 150 * time.Millisecond
	DefaultSidecarPollInterval = 250 * time.Millisecond
	DefaultRateWindow          = 10 * time.Second
	DefaultCancelGrace         = 3 * time.Second
	DefaultSettleGrace         = 250 * time.Millisecond
	DefaultProbeCacheTTL       = 30 * 24 * time.Hour
)

// DatabaseFile is the SQLite file name inside the database directory.
const DatabaseFile = "media-converter.db"

// DefaultWorkDir is where sidecar progress files are created.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), "media-converter")
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	progressMode, err := media.ParseProgressMode(getEnv("PROGRESS_MODE", string(media.ProgressStream)))
	if err != nil {
		logging.Warn("  Invalid PROGRESS_MODE, using default: stream")
		progressMode = media.ProgressStream
	}

	config := &Config{
		Port:                getEnv("PORT", DefaultPort),
		MetricsPort:         getEnv("METRICS_PORT", DefaultMetricsPort),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:     getEnvBool("LOG_HEALTH_CHECKS", true),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		WorkDir:             getEnv("WORK_DIR", DefaultWorkDir()),
		DatabaseDir:         getEnv("DATABASE_DIR", DefaultDatabaseDir),
		ProgressMode:        progressMode,
		ProgressInterval:    getEnvDuration("PROGRESS_INTERVAL", DefaultProgressInterval),
		SidecarPollInterval: getEnvDuration("SIDECAR_POLL_INTERVAL", DefaultSidecarPollInterval),
		RateWindow:          getEnvDuration("RATE_WINDOW", DefaultRateWindow),
		CancelGrace:         getEnvDuration("CANCEL_GRACE", DefaultCancelGrace),
		SettleGrace:         getEnvDuration("SETTLE_GRACE", DefaultSettleGrace),
		Workers:             workers.Conversions(),
		ProbeCacheTTL:       getEnvDuration("PROBE_CACHE_TTL", DefaultProbeCacheTTL),
	}

	logging.Info("  PORT:                  %s", config.Port)
	logging.Info("  METRICS_PORT:          %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:       %v", config.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", config.LogHealthChecks)
	logging.Info("  FFMPEG_PATH:           %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:          %s", config.FFprobePath)
	logging.Info("  WORK_DIR:              %s", config.WorkDir)
	logging.Info("  DATABASE_DIR:          %s", config.DatabaseDir)
	logging.Info("  PROGRESS_MODE:         %s", config.ProgressMode)
	logging.Info("  PROGRESS_INTERVAL:     %v", config.ProgressInterval)
	logging.Info("  SIDECAR_POLL_INTERVAL: %v", config.SidecarPollInterval)
	logging.Info("  RATE_WINDOW:           %v", config.RateWindow)
	logging.Info("  CANCEL_GRACE:          %v", config.CancelGrace)
	logging.Info("  SETTLE_GRACE:          %v", config.SettleGrace)
	logging.Info("  CONVERT_WORKERS:       %d", config.Workers)
	logging.Info("  PROBE_CACHE_TTL:       %v", config.ProbeCacheTTL)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.WorkDir, err = filepath.Abs(config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	logging.Info("  Work directory (absolute): %s", config.WorkDir)

	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)
	config.DatabasePath = filepath.Join(config.DatabaseDir, DatabaseFile)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if err := ensureDirectory(config.WorkDir, "work"); err != nil {
		return nil, fmt.Errorf("work directory error: %w", err)
	}
	if err := testWriteAccess(config.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory is not writable (required for progress files): %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	return config, nil
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
