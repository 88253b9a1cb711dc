package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/garelay/internal/analytics"
	"github.com/teemow/garelay/internal/config"
	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/google"
	"github.com/teemow/garelay/internal/instrumentation"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/relay"
	"github.com/teemow/garelay/internal/resources"
	"github.com/teemow/garelay/internal/server"
	"github.com/teemow/garelay/internal/sink"
	"github.com/teemow/garelay/internal/tools/analytics_tools"
)

// serveFlags override the loaded configuration when set explicitly.
type serveFlags struct {
	configFile     string
	debug          bool
	logFormat      string
	port           int
	sinkMode       string
	storeType      string
	mcpEnabled     bool
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the relay HTTP server",
		Long: `Start the HTTP server that runs the Google Analytics OAuth flow and
answers analytics queries for connected workspaces.

Configuration is read from, in increasing order of precedence, built-in
defaults, the YAML file given with --config, environment variables and the
flags below.

Required:
  GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, GOOGLE_REDIRECT_URI

Credential sink (SINK_MODE):
  store   Tokens are written to the credential store chosen by STORE_TYPE
          (rest, sql, redis, mongo, memory). /query, /disconnect and /mcp
          are served.
  bridge  Tokens are posted to MCP_BRIDGE_URL with the x-mcp-secret header
          set to MCP_BRIDGE_SECRET. Only the OAuth flow is served.

Instrumentation:
  INSTRUMENTATION_ENABLED, METRICS_EXPORTER, TRACING_EXPORTER,
  OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_TRACES_SAMPLER_ARG`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, flags, &cfg)

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&flags.configFile, "config", "", "Path to a YAML configuration file")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging. Can also use DEBUG env var.")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", logging.FormatJSON, "Log format: json or text. Can also use LOG_FORMAT env var.")
	cmd.Flags().IntVar(&flags.port, "port", config.DefaultPort, "HTTP listen port. Can also use PORT env var.")
	cmd.Flags().StringVar(&flags.sinkMode, "sink-mode", sink.ModeStore, "Credential sink: store or bridge. Can also use SINK_MODE env var.")
	cmd.Flags().StringVar(&flags.storeType, "store-type", credentials.TypeREST, "Credential store: rest, sql, redis, mongo or memory. Can also use STORE_TYPE env var.")
	cmd.Flags().BoolVar(&flags.mcpEnabled, "mcp-enabled", true, "Serve the MCP endpoint at /mcp. Can also use MCP_ENABLED env var.")
	cmd.Flags().BoolVar(&flags.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// applyFlagOverrides copies explicitly set flags into cfg.
func applyFlagOverrides(cmd *cobra.Command, flags serveFlags, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("debug") {
		cfg.Debug = flags.debug
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = flags.logFormat
	}
	if fs.Changed("port") {
		cfg.Port = flags.port
	}
	if fs.Changed("sink-mode") {
		cfg.Sink.Mode = flags.sinkMode
	}
	if fs.Changed("store-type") {
		cfg.Store.Type = flags.storeType
	}
	if fs.Changed("mcp-enabled") {
		cfg.MCP.Enabled = flags.mcpEnabled
	}
	if fs.Changed("metrics-enabled") {
		cfg.Metrics.Enabled = flags.metricsEnabled
	}
	if fs.Changed("metrics-addr") {
		cfg.Metrics.Addr = flags.metricsAddr
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.Debug)
	slog.SetDefault(logger)

	instrConfig, err := instrumentation.ConfigFromEnv()
	if err != nil {
		return err
	}
	instrConfig.ServiceVersion = version
	if err := instrConfig.Validate(); err != nil {
		return fmt.Errorf("invalid instrumentation configuration: %w", err)
	}

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	app, err := newRelayApp(ctx, cfg, instrConfig, provider, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.MetricsHandler() != nil {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	} else if cfg.Metrics.Enabled {
		logger.Info("metrics server not started, prometheus exporter is not active",
			slog.String("metrics_exporter", instrConfig.MetricsExporter))
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := app.server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	if len(errs) == 0 {
		logger.Info("server gracefully stopped")
	}
	return errors.Join(errs...)
}

// relayApp is the wired relay and the resources it holds.
type relayApp struct {
	server  *server.Server
	mcp     *mcpserver.MCPServer
	closers []func(context.Context) error
	logger  *slog.Logger
}

func newRelayApp(ctx context.Context, cfg config.Config, instrConfig instrumentation.Config, provider *instrumentation.Provider, logger *slog.Logger) (*relayApp, error) {
	metrics := provider.Metrics()
	oauthClient := google.NewClient(
		google.NewOAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURI), nil)
	oauthClient.SetMetrics(metrics)
	health := server.NewHealthChecker()

	app := &relayApp{logger: logger}
	srvConfig := server.Config{
		ServiceName:    cfg.ServiceName,
		Version:        version,
		Authorizer:     oauthClient,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         health,
		Metrics:        metrics,
		Logger:         logger,
	}

	if err := sink.ValidateMode(cfg.Sink.Mode); err != nil {
		return nil, err
	}

	if !cfg.QueryEnabled() {
		bridge, err := sink.NewBridgeSink(cfg.Sink.BridgeURL, cfg.Sink.BridgeSecret, nil)
		if err != nil {
			return nil, err
		}
		srvConfig.Sink = bridge
	} else {
		store, err := openStore(ctx, cfg.Store, cfg.Debug, logger)
		if err != nil {
			return nil, err
		}
		if store.close != nil {
			app.closers = append(app.closers, store.close)
		}
		if store.check != nil {
			health.AddCheck("store", store.check)
		}

		dispatcher, err := relay.NewDispatcher(relay.Config{
			Store:     store,
			Refresher: oauthClient,
			Factory:   analytics.NewClientFactory(oauthClient, metrics),
			Metrics:   metrics,
			Audit:     instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging),
			Logger:    logger,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		srvConfig.Sink = sink.NewStoreSink(store)
		srvConfig.Relay = dispatcher

		if cfg.MCP.Enabled {
			app.mcp, err = newMCPServer(dispatcher, store, metrics)
			if err != nil {
				app.Close()
				return nil, err
			}
			srvConfig.MCP = mcpserver.NewStreamableHTTPServer(app.mcp, mcpserver.WithEndpointPath("/mcp"))
			srvConfig.MCPSecret = cfg.MCP.Secret
		}
	}

	srv, err := server.New(srvConfig)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.server = srv
	return app, nil
}

// Close releases the store connections.
func (a *relayApp) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil {
			a.logger.Warn("failed to close store", logging.Err(err))
		}
	}
	a.closers = nil
}

// newMCPServer builds an MCP server exposing every analytics tool and the
// relay resources backed by store.
func newMCPServer(q analytics_tools.Querier, store credentials.Store, metrics *instrumentation.Metrics) (*mcpserver.MCPServer, error) {
	s := mcpserver.NewMCPServer("garelay", version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	if err := analytics_tools.RegisterAnalyticsTools(s, q, metrics); err != nil {
		return nil, fmt.Errorf("failed to register analytics tools: %w", err)
	}
	if err := resources.RegisterRelayResources(s, store); err != nil {
		return nil, fmt.Errorf("failed to register resources: %w", err)
	}
	return s, nil
}
