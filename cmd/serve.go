package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/tasksage/tasksage/internal/assistant"
	"github.com/tasksage/tasksage/internal/auth"
	"github.com/tasksage/tasksage/internal/instrumentation"
	"github.com/tasksage/tasksage/internal/logging"
	"github.com/tasksage/tasksage/internal/mcpbridge"
	"github.com/tasksage/tasksage/internal/server"
	"github.com/tasksage/tasksage/internal/store"
	"github.com/tasksage/tasksage/internal/tools/tasktools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

// ServeConfig collects the settings of the serve command after flag and
// environment resolution.
type ServeConfig struct {
	Debug     bool
	HTTPAddr  string
	DBPath    string
	JWTSecret string
	TokenTTL  time.Duration
	Model     string
	Metrics   MetricsConfig
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		httpAddr       string
		dbPath         string
		jwtSecret      string
		tokenTTL       time.Duration
		model          string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the task management API server",
		Long: `Start the task management HTTP API server.

The server stores data in a local SQLite database and issues JWT bearer
tokens for authentication. When an Anthropic API key is available the
assistant endpoints are enabled as well:

  POST /tasks/chat  answers questions about the caller's tasks; the
                    model may invoke local analysis tools over MCP
  POST /tasks       includes AI-suggested subtasks in the response

Assistant Configuration:
  ANTHROPIC_API_KEY env var enables the assistant. Without it the API
  still serves task CRUD; chat requests return 503 and subtask
  suggestions are empty.

Authentication:
  --jwt-secret flag OR TASKSAGE_JWT_SECRET env var (required)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ServeConfig{
				Debug:     debugMode,
				HTTPAddr:  httpAddr,
				DBPath:    dbPath,
				JWTSecret: jwtSecret,
				TokenTTL:  tokenTTL,
				Model:     model,
				Metrics: MetricsConfig{
					Enabled: metricsEnabled,
					Addr:    metricsAddr,
				},
			}
			resolveServeEnv(&cfg)

			if cfg.JWTSecret == "" {
				return fmt.Errorf("a JWT signing secret is required (--jwt-secret or TASKSAGE_JWT_SECRET)")
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address. Can also use TASKSAGE_HTTP_ADDR env var.")
	cmd.Flags().StringVar(&dbPath, "db", "tasksage.db", "Path to the SQLite database file, or :memory: for an ephemeral store. Can also use TASKSAGE_DB env var.")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "Secret used to sign JWT bearer tokens. Can also use TASKSAGE_JWT_SECRET env var.")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of issued bearer tokens.")
	cmd.Flags().StringVar(&model, "anthropic-model", "", "Anthropic model for the assistant. Can also use ANTHROPIC_MODEL env var. Defaults to "+string(assistant.DefaultModel)+".")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// resolveServeEnv fills unset config fields from environment variables.
// Flags win over the environment.
func resolveServeEnv(cfg *ServeConfig) {
	if cfg.HTTPAddr == "" || cfg.HTTPAddr == ":8080" {
		if addr := os.Getenv("TASKSAGE_HTTP_ADDR"); addr != "" {
			cfg.HTTPAddr = addr
		}
	}
	if cfg.DBPath == "" || cfg.DBPath == "tasksage.db" {
		if path := os.Getenv("TASKSAGE_DB"); path != "" {
			cfg.DBPath = path
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("TASKSAGE_JWT_SECRET")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("ANTHROPIC_MODEL")
	}
	if cfg.Metrics.Enabled {
		if v := os.Getenv("METRICS_ENABLED"); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				cfg.Metrics.Enabled = parsed
			}
		}
	}
	if cfg.Metrics.Addr == "" || cfg.Metrics.Addr == ":9090" {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Metrics.Addr = addr
		}
	}
}

func runServe(cfg ServeConfig) error {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	// Start metrics server if enabled
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		logger.Info("metrics server listening", "addr", metricsServer.Addr())
	}

	// Open the store and run migrations
	db, err := store.Open(shutdownCtx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing database", logging.Err(err))
		}
	}()

	users := store.NewUserRepo(db)
	tasks := store.NewTaskRepo(db)

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to build token issuer: %w", err)
	}

	// Bring up the in-process MCP tool server and its client bridge.
	// A failed handshake is not fatal: the API keeps serving and chat
	// degrades to an apology.
	toolServer := tasktools.NewServer(version, tasks, provider.Metrics())
	bridge := mcpbridge.New(toolServer, logger)
	if !bridge.Connect(shutdownCtx) {
		logger.Warn("tool bridge failed to connect; assistant runs without tools")
	}
	defer bridge.Disconnect()

	// The assistant needs an Anthropic API key; without one the chat
	// endpoint returns 503 and subtask suggestions stay empty.
	var chatter server.Chatter
	var suggester server.SubtaskSuggester
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		opts := []assistant.Option{assistant.WithMetrics(provider.Metrics())}
		if cfg.Model != "" {
			opts = append(opts, assistant.WithModel(anthropic.Model(cfg.Model)))
		}

		client := anthropic.NewClient()
		chatter = assistant.NewOrchestrator(&client.Messages, bridge, logger, opts...)
		suggester = assistant.NewSuggester(&client.Messages, logger, opts...)
	} else {
		logger.Warn("ANTHROPIC_API_KEY is not set; assistant features are disabled")
	}

	health := server.NewHealthChecker(db, bridge)

	handler := server.NewHandler(server.Config{
		Issuer:    issuer,
		Users:     users,
		Tasks:     tasks,
		Chatter:   chatter,
		Suggester: suggester,
		Health:    health,
		Logger:    logger,
		Metrics:   provider.Metrics(),
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-shutdownCtx.Done():
	}

	logger.Info("shutting down")
	health.SetReady(false)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error("error during http shutdown", logging.Err(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			logger.Error("error during metrics shutdown", logging.Err(err))
		}
	}

	return nil
}
