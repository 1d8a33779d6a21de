package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/download"
	"github.com/Charliesj0129/pixAV/pkg/ingest"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	"github.com/Charliesj0129/pixAV/pkg/orchestrator"
	"github.com/Charliesj0129/pixAV/pkg/resolver"
	"github.com/Charliesj0129/pixAV/pkg/upload"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the PixAV pipeline",
	Long: `Start the PixAV pipeline with the specified configuration.

One process hosts every role enabled in the configuration: the orchestrator
tick loop and crawl ingester, download workers, upload workers and the
resolver HTTP server. Run several processes with different roles enabled to
scale stages independently; they coordinate through the shared database and
Redis broker.

By default, the process runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/pixav/config.yaml.

Examples:
  # Start in background (default)
  pixav start

  # Start in foreground
  pixav start --foreground

  # Start with custom config file
  pixav start --config /etc/pixav/config.yaml

  # Start with environment variable overrides
  PIXAV_LOGGING_LEVEL=DEBUG pixav start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/pixav/pixav.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/pixav/pixav.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if !cfg.Orchestrator.Enabled && !cfg.Download.Enabled && !cfg.Upload.Enabled && !cfg.Resolver.Enabled {
		return fmt.Errorf("no roles enabled in configuration\n\n" +
			"Enable at least one of orchestrator, download, upload or resolver")
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "pixav",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "pixav",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
		Tags:           map[string]string{"roles": enabledRoles(cfg)},
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("PixAV - Media ingestion pipeline")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics FIRST (before creating workers that record them)
	metricsResult := config.InitializeMetrics(cfg)

	// Connect to the durable store. This applies pending migrations, so
	// it must happen before any role reads the schema.
	st, err := config.CreateStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store connected", "type", cfg.Database.Type)

	// Connect to the Redis broker shared by every role.
	client, err := config.CreateBroker(cfg.Broker)
	if err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	defer func() { _ = client.Close() }()

	// Media staging is only needed by the upload stage and the local
	// playback path of the resolver.
	var media mediastore.Store
	if cfg.Upload.Enabled || cfg.Resolver.Enabled {
		media, err = config.CreateMediaStore(ctx, cfg.MediaStore)
		if err != nil {
			return fmt.Errorf("failed to initialize media store: %w", err)
		}
		logger.Info("Media store ready", "backend", cfg.MediaStore.Backend)
	}

	// Serve /metrics if enabled
	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Start the enabled roles. Workers run their own goroutines; Stop
	// drains them during shutdown.
	var (
		orchWorker     *orchestrator.Worker
		ingestWorker   *ingest.Worker
		downloadWorker *download.Worker
		uploadWorker   *upload.Worker
		resolverDone   chan error
		resolverSrv    *resolver.Server
	)

	if cfg.Orchestrator.Enabled {
		orch := orchestrator.New(cfg.Orchestrator, st, client, cfg.Queues, metricsResult.Orchestrator)
		orchWorker = orchestrator.NewWorker(orch)
		orchWorker.Start(ctx)

		ingester := ingest.New(st, broker.NewQueue(client, cfg.Queues.Crawl),
			cfg.Queues.Download, cfg.Download.MaxRetries, cfg.Orchestrator.BatchSize)
		ingestWorker = ingest.NewWorker(ingester, cfg.Orchestrator.TickInterval)
		ingestWorker.Start(ctx)
	}

	if cfg.Download.Enabled {
		downloadWorker = download.NewWorker(cfg.Download, st, client, cfg.Queues, metricsResult.Pipeline)
		downloadWorker.Start(ctx)
	}

	if cfg.Upload.Enabled {
		uploadWorker, err = upload.NewWorker(cfg.Upload, st, client, media, cfg.Queues,
			cfg.System.PauseKey, metricsResult.Pipeline)
		if err != nil {
			return fmt.Errorf("failed to create upload worker: %w", err)
		}
		uploadWorker.Start(ctx)
	}

	if cfg.Resolver.Enabled {
		res := resolver.New(cfg.Resolver, cfg.Upload.LocalShareScheme, st, client, metricsResult.Resolver)
		handler := resolver.NewHandler(res, st, media, cfg.Upload.LocalShareScheme)
		resolverSrv = resolver.NewServer(cfg.Resolver, handler, metricsResult.Resolver)

		resolverDone = make(chan error, 1)
		go func() {
			resolverDone <- resolverSrv.Start(ctx)
		}()
	}

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Wait for interrupt signal or resolver failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Pipeline is running. Press Ctrl+C to stop.")

	var runErr error
	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")

	case err := <-resolverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Resolver server error", "error", err)
			runErr = err
		}
	}

	cancel()

	// Drain workers; each waits up to the shutdown timeout for its
	// in-flight task.
	if ingestWorker != nil {
		ingestWorker.Stop(cfg.ShutdownTimeout)
	}
	if orchWorker != nil {
		orchWorker.Stop(cfg.ShutdownTimeout)
	}
	if downloadWorker != nil {
		downloadWorker.Stop(cfg.ShutdownTimeout)
	}
	if uploadWorker != nil {
		uploadWorker.Stop(cfg.ShutdownTimeout)
	}
	if resolverSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := resolverSrv.Stop(shutdownCtx); err != nil {
			logger.Error("Resolver shutdown error", "error", err)
		}
		shutdownCancel()
		if resolverDone != nil {
			<-resolverDone
		}
	}
	if metricsResult.Server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := metricsResult.Server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown error", "error", err)
		}
		shutdownCancel()
	}

	if runErr != nil {
		return runErr
	}
	logger.Info("Pipeline stopped gracefully")
	return nil
}

// enabledRoles renders the enabled roles as a comma-joined tag value.
func enabledRoles(cfg *config.Config) string {
	roles := make([]string, 0, 4)
	if cfg.Orchestrator.Enabled {
		roles = append(roles, "orchestrator")
	}
	if cfg.Download.Enabled {
		roles = append(roles, "download")
	}
	if cfg.Upload.Enabled {
		roles = append(roles, "upload")
	}
	if cfg.Resolver.Enabled {
		roles = append(roles, "resolver")
	}
	return strings.Join(roles, ",")
}

// startDaemon starts the pipeline as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()

	// Create state directory if it doesn't exist
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				// Check if process is still running
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("PixAV is already running (PID %d)\nUse 'pixav stop' to stop the running instance", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	// Get the executable path
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Build arguments for the daemon process
	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	// Create the daemon process
	cmd := exec.Command(executable, daemonArgs...)

	// Open log file for stdout/stderr
	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// Start the daemon
	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("PixAV started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'pixav stop' to stop the pipeline")
	fmt.Println("Use 'pixav status' to check pipeline status")

	return nil
}
