package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/config"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/connection"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/display"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/metrics"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/notify"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/tui"
	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/web"
)

var (
	// Version information (set via -ldflags)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// CLI flags
	configPath string
	flags      = config.Default()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ups-dashboard",
		Short: "Live dashboard for a Bicker UPS status server",
		Long: `ups-dashboard connects to the ups-server websocket status server,
keeps the connection alive and renders the UPS telemetry in a browser,
a terminal or the log.`,
		SilenceUsage: true,
		RunE:         run,
	}

	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&flags.Host, "host", flags.Host, "UPS status server host (overrides UPS_HOST)")
	f.IntVar(&flags.Port, "port", flags.Port, "UPS status server port (overrides UPS_PORT)")
	f.DurationVar(&flags.ReconnectDelay, "reconnect-delay", flags.ReconnectDelay, "Delay between reconnect attempts")
	f.StringVar(&flags.Surface, "surface", flags.Surface, "Display surface: web, tui or log (overrides SURFACE)")
	f.StringVar(&flags.ListenAddr, "listen-addr", flags.ListenAddr, "Dashboard listen address for the web surface")
	f.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&flags.LogFile, "log-file", flags.LogFile, "Log file used by the tui surface")
	f.IntVar(&flags.MetricsPort, "metrics-port", flags.MetricsPort, "Prometheus metrics port")
	f.IntVar(&flags.HealthPort, "health-port", flags.HealthPort, "Health check port")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ups-dashboard %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "  git commit: %s\n", gitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  build date: %s\n", buildDate)
		},
	}

	rootCmd.AddCommand(versionCmd)
	return rootCmd
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Setup logging; the terminal surface owns stdout
	var out io.Writer = os.Stdout
	if cfg.Surface == config.SurfaceTUI {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer file.Close()
		out = file
	}
	logger := setupLogging(cfg.LogLevel, out)

	logger.Info().
		Str("version", version).
		Str("git_commit", gitCommit).
		Str("build_date", buildDate).
		Msg("Starting ups-dashboard")

	logger.Info().
		Str("server", cfg.ServerURL()).
		Str("subprotocol", cfg.Subprotocol).
		Dur("reconnect_delay", cfg.ReconnectDelay).
		Str("surface", cfg.Surface).
		Msg("Configuration loaded")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	manager := connection.NewManager(cfg.ServerURL(), cfg.Subprotocol, cfg.ReconnectDelay, logger)

	// Start metrics server
	metricsServer := startMetricsServer(cfg.MetricsPort, logger)
	defer shutdown(metricsServer, "Metrics", logger)

	// Start health server
	healthServer := startHealthServer(cfg.HealthPort, func() bool {
		return manager.State() == connection.Connected
	}, logger)
	defer shutdown(healthServer, "Health", logger)

	// Pick the display surface
	var (
		surface display.Surface
		serve   func(context.Context) error
		onClick *func()
	)
	switch cfg.Surface {
	case config.SurfaceWeb:
		srv := web.NewServer(logger)
		surface, onClick = srv, &srv.OnMeasure
		serve = func(ctx context.Context) error { return srv.Serve(ctx, cfg.ListenAddr) }
	case config.SurfaceTUI:
		term := tui.NewSurface(logger)
		surface, onClick = term, &term.OnMeasure
		serve = term.Run
	default:
		surface = display.NewLogSurface(logger)
		serve = func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}
	}

	observers := []display.Observer{metrics.ObserveSnapshot}
	if cfg.NotificationsEnabled() {
		watcher := notify.NewPowerWatcher(notify.NewPushover(cfg.PushoverToken, cfg.PushoverUser), logger)
		observers = append(observers, watcher.Observe)
		logger.Info().Msg("Power notifications enabled")
	}

	binder := display.NewBinder(surface, manager, logger, observers...)
	if onClick != nil {
		*onClick = binder.OnUserRequestMeasurement
	}

	managerDone := make(chan error, 1)
	go func() { managerDone <- manager.Run(ctx) }()

	binderDone := make(chan error, 1)
	go func() { binderDone <- binder.Run(ctx, manager.Events()) }()

	binder.Start()
	logger.Info().Msg("Dashboard initialized, connecting to UPS")

	serveErr := serve(ctx)
	cancel()

	if err := <-managerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Connection manager error")
	}
	if err := <-binderDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Display error")
	}

	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("Surface error")
		return serveErr
	}

	logger.Info().Msg("Shutdown complete")
	return nil
}

// loadConfig layers defaults, file, env and explicit flags, then validates
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Host = flags.Host
	}
	if f.Changed("port") {
		cfg.Port = flags.Port
	}
	if f.Changed("reconnect-delay") {
		cfg.ReconnectDelay = flags.ReconnectDelay
	}
	if f.Changed("surface") {
		cfg.Surface = flags.Surface
	}
	if f.Changed("listen-addr") {
		cfg.ListenAddr = flags.ListenAddr
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.LogLevel
	}
	if f.Changed("log-file") {
		cfg.LogFile = flags.LogFile
	}
	if f.Changed("metrics-port") {
		cfg.MetricsPort = flags.MetricsPort
	}
	if f.Changed("health-port") {
		cfg.HealthPort = flags.HealthPort
	}
}

// setupLogging configures structured JSON logging
func setupLogging(level string, out io.Writer) zerolog.Logger {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(out).With().
		Timestamp().
		Str("service", "ups-dashboard").
		Logger()
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port int, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return listen("Metrics", port, mux, logger)
}

// startHealthServer starts the health check HTTP server
func startHealthServer(port int, ready func() bool, logger zerolog.Logger) *http.Server {
	return listen("Health", port, healthMux(ready), logger)
}

func healthMux(ready func() bool) *http.ServeMux {
	mux := http.NewServeMux()

	// Liveness - always returns 200 if server is running
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readiness - returns 200 only while the UPS link is up
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	return mux
}

func listen(name string, port int, handler http.Handler, logger zerolog.Logger) *http.Server {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", port).Msgf("Starting %s server", name)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msgf("%s server error", name)
		}
	}()

	return server
}

func shutdown(server *http.Server, name string, logger zerolog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msgf("%s server shutdown error", name)
	}
}
