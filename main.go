package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-ingest/internal/database"
	"hls-ingest/internal/filesystem"
	"hls-ingest/internal/handlers"
	"hls-ingest/internal/logging"
	"hls-ingest/internal/memory"
	"hls-ingest/internal/metrics"
	"hls-ingest/internal/middleware"
	"hls-ingest/internal/pipeline"
	"hls-ingest/internal/startup"
	"hls-ingest/internal/uploads"
)

const (
	metricsInterval = 30 * time.Second
	// shutdownGrace is how long in-flight requests may finish on their own.
	shutdownGrace = 30 * time.Second
	// drainTimeout bounds the wait for canceled runs to kill their encoder
	// and record the rejection.
	drainTimeout = 20 * time.Second
)

func main() {
	startTime := time.Now()

	// Must run before anything allocates much.
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(config.Volumes()))

	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	startup.LogToolsInit(config)

	runLock, err := database.OpenRunLock(config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open run lock: %v", err)
	}
	defer runLock.Close()

	p := pipeline.Build(db, config)

	// Anything still in transcoding was cut off by the previous process,
	// unless another process sharing the database is running it.
	if exclusive, err := runLock.TryExclusive(); err != nil || !exclusive {
		startup.LogRecoverySkipped(err)
	} else {
		recovered, err := p.Recover(context.Background())
		startup.LogRecovery(recovered, err)
	}
	if err := runLock.Share(); err != nil {
		startup.LogFatal("Failed to hold run lock: %v", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	h := handlers.New(db, p, uploads.New(config.UploadDir, config.MaxUploadBytes()), config).
		WithThrottle(monitor)

	router := h.NewRouter()
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.StaticPrefix = h.PathPrefix()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks

	handler := middleware.Chain(router,
		middleware.RequestID,
		middleware.Logger(loggingConfig),
		middleware.Metrics(middleware.DefaultMetricsConfig()),
		middleware.Compression(middleware.DefaultCompressionConfig()),
	)

	// Request contexts derive from runCtx so shutdown can cancel runs that
	// outlive the grace period.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and synchronous transcodes are bounded by the body limit
		// and the processing timeout instead.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	collector := metrics.NewCollector(db, metricsInterval)
	collector.Start()

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, collector, monitor, p, cancelRuns)
		close(done)
	}()

	h.SetReady()
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, monitor *memory.Monitor,
	p *pipeline.Pipeline, cancelRuns context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
		// Kills the encoders and rejects their assets.
		startup.LogShutdownStep("Canceling in-flight runs")
		cancelRuns()
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// The database closes once main returns, so no run may still be
	// writing to it.
	startup.LogShutdownStep("Waiting for in-flight runs")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := p.Wait(drainCtx); err != nil {
		logging.Warn("In-flight runs did not finish: %v", err)
	} else {
		startup.LogShutdownStepComplete("In-flight runs finished")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Stopping metrics server")
		metricsCtx, metricsCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer metricsCancel()
		if err := metricsSrv.Shutdown(metricsCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Stopping background monitors")
	collector.Stop()
	monitor.Stop()
	startup.LogShutdownStepComplete("Background monitors stopped")

	startup.LogShutdownComplete()
}
