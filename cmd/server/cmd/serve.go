package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eventdeck/server/internal/api"
	"github.com/eventdeck/server/internal/audit"
	"github.com/eventdeck/server/internal/auth"
	"github.com/eventdeck/server/internal/config"
	"github.com/eventdeck/server/internal/domain/events"
	"github.com/eventdeck/server/internal/domain/modules"
	"github.com/eventdeck/server/internal/metrics"
	"github.com/eventdeck/server/internal/storage/memory"
	"github.com/eventdeck/server/internal/storage/postgres"
	"github.com/eventdeck/server/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *globalFlags) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the eventdeck HTTP server",
		Long: `Start the eventdeck HTTP server and begin accepting API requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Load the module catalog and open the event store
- Run database migrations when STORAGE_DRIVER=postgres and DATABASE_MIGRATE_ON_START is set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug

  # Start with a config file
  server serve --config /etc/eventdeck/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			logger := config.NewLogger(cfg.Logging)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return runServer(ctx, cfg, logger, listener)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "server port (default: 8080)")
	return cmd
}

// runServer serves on listener until ctx is cancelled, then drains
// in-flight requests and releases the store.
func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger, listener net.Listener) error {
	logger.Info().Str("version", Version).Str("storage", cfg.Storage.Driver).Msg("starting eventdeck server")
	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	catalog, err := modules.Load(cfg.Modules.CatalogPath)
	if err != nil {
		return fmt.Errorf("load module catalog: %w", err)
	}
	for _, c := range catalog.Counts() {
		metrics.SetCatalogModules(c.Category, c.Active, c.Count)
	}
	logger.Info().Int("modules", catalog.Len()).Msg("module catalog loaded")

	group, ctx := errgroup.WithContext(ctx)

	repo, closeStore, err := openStore(ctx, cfg, logger, group)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []events.Option{
		events.WithLogger(logger),
		events.WithAuditLogger(audit.NewLoggerWithZerolog(logger)),
		events.WithStrictModuleConfig(cfg.Modules.StrictConfig),
	}
	if cfg.Auth.EnforceOwnership {
		opts = append(opts, events.WithPolicy(events.OwnerPolicy{}))
	}
	service := events.NewService(repo, catalog, opts...)

	var jwt *auth.JWTManager
	if cfg.Auth.JWTSecret != "" {
		jwt = auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
	} else {
		logger.Warn().Msg("JWT_SECRET not set; all callers act as the anonymous owner")
	}

	server := &http.Server{
		Handler: api.NewRouter(api.Deps{
			Config:  cfg,
			Logger:  logger,
			Service: service,
			JWT:     jwt,
			Build:   buildInfo(),
		}),
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	group.Go(func() error {
		logger.Info().Str("addr", listener.Addr().String()).Msg("listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	return group.Wait()
}

// openStore builds the configured event store. For postgres it also starts
// the pool metrics collector on group.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger, group *errgroup.Group) (events.Repository, func(), error) {
	if cfg.Storage.Driver != config.StoragePostgres {
		return memory.NewEventStore(), func() {}, nil
	}

	if cfg.Storage.MigrateOnStart {
		if err := postgres.MigrateUp(cfg.Storage.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		logger.Info().Msg("database migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.Storage.DatabaseURL, cfg.Storage.MaxConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	repo, err := postgres.NewEventRepository(pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	collector := metrics.NewDBCollector(pool)
	group.Go(func() error {
		collector.Run(ctx, 15*time.Second)
		return nil
	})
	logger.Info().Msg("database metrics collector started")

	return repo, pool.Close, nil
}
