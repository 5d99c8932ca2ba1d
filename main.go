package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/handlers"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/preview"
	"media-converter/internal/probe"
	"media-converter/internal/startup"
	"media-converter/internal/transcoder"

	"github.com/gorilla/mux"
)

// probePruneInterval is how often expired probe cache rows are removed.
const probePruneInterval = 24 * time.Hour

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	transcoder.SetObserver(metrics.NewConversionObserver())

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Check external tools
	detector := capability.NewDetector(config.FFmpegPath)
	toolCtx, toolCancel := context.WithTimeout(context.Background(), 5*time.Second)
	tools := detector.CheckTools(toolCtx, config.FFprobePath)
	caps := detector.DetectOnce(toolCtx)
	toolCancel()
	startup.LogToolsInit(tools, caps)

	// Initialize conversion manager
	hub := events.NewHub(events.DefaultBuffer)
	prober := probe.NewCachedProber(probe.NewClient(config.FFprobePath), db)
	manager := transcoder.NewManager(transcoder.Config{
		FFmpegPath:       config.FFmpegPath,
		WorkDir:          config.WorkDir,
		Workers:          config.Workers,
		ProgressMode:     config.ProgressMode,
		ProgressInterval: config.ProgressInterval,
		PollInterval:     config.SidecarPollInterval,
		RateWindow:       config.RateWindow,
		CancelGrace:      config.CancelGrace,
		SettleGrace:      config.SettleGrace,
		Capabilities:     detector,
		Prober:           prober,
		Events:           hub,
		History:          db,
	})
	startup.LogConverterInit(config)

	sidecarBytes, err := manager.CleanupSidecars()
	if err != nil {
		logging.Warn("Failed to remove stale progress files: %v", err)
	}
	pruned := pruneProbeCache(db, config.ProbeCacheTTL)
	startup.LogHousekeeping(sidecarBytes, pruned)

	// Prune the probe cache periodically
	go func() {
		ticker := time.NewTicker(time.Hour)
		for range ticker.C {
			last, err := db.GetLastProbePrune(context.Background())
			if err != nil || time.Since(last) >= probePruneInterval {
				pruneProbeCache(db, config.ProbeCacheTTL)
			}
		}
	}()

	// Start metrics collector
	collector := metrics.NewCollector(db, time.Minute)
	collector.Start()

	// Initialize handlers
	h := handlers.New(handlers.Deps{
		Prober:       prober,
		Capabilities: detector,
		Converter:    manager,
		History:      db,
		Previews:     preview.NewGenerator(config.FFmpegPath),
		Events:       hub,
		Tools:        tools,
	})

	// Setup router
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	metricsConfig := middleware.DefaultMetricsConfig()
	router.Use(middleware.Metrics(metricsConfig))

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Create server
	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, manager, collector)
		close(done)
	}()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}

	// Running jobs are still being stopped and recorded.
	<-done
}

// pruneProbeCache removes probe results older than ttl and records when
// it ran.
func pruneProbeCache(db *database.Database, ttl time.Duration) int64 {
	ctx := context.Background()
	n, err := db.PruneProbeCache(ctx, time.Now().Add(-ttl))
	if err != nil {
		logging.Warn("Failed to prune probe cache: %v", err)
		return 0
	}
	if err := db.SetLastProbePrune(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record probe cache prune: %v", err)
	}
	return n
}

func handleShutdown(srv, metricsSrv *http.Server, manager *transcoder.Manager, collector *metrics.Collector) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping conversions")
	manager.Cleanup()
	startup.LogShutdownStepComplete("Conversions stopped")

	collector.Stop()
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	startup.LogShutdownComplete()
}
