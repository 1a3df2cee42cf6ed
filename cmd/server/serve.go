package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/ksred/tradejournal-api/internal/cache"
	"github.com/ksred/tradejournal-api/internal/config"
	"github.com/ksred/tradejournal-api/internal/database"
	"github.com/ksred/tradejournal-api/internal/database/migrations"
	"github.com/ksred/tradejournal-api/internal/events"
	"github.com/ksred/tradejournal-api/internal/logging"
	"github.com/ksred/tradejournal-api/internal/reconcile"
	"github.com/ksred/tradejournal-api/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer database.Close(db)
			return serve(cmd.Context(), cfg, db)
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			_, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			return database.Close(db)
		},
	}
}

func newReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Check every account balance against its closed trades",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer database.Close(db)

			drift, err := reconcile.NewProcessor(db, 0).Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range drift {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tstored %.2f\texpected %.2f\tdiff %+.2f\n",
					d.AccountID, d.CurrentBalance, d.Expected(), d.Difference())
			}
			if len(drift) > 0 {
				return fmt.Errorf("%d account(s) out of balance", len(drift))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all account balances reconcile")
			return nil
		},
	}
}

// bootstrap loads config, configures logging, opens the database and migrates it.
func bootstrap(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.Env, cfg.LogLevel, cfg.Debug)

	db, err := database.NewDatabase(database.Config{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
		Debug:  cfg.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		database.Close(db)
		return nil, nil, err
	}
	return cfg, db, nil
}

// serve runs the API until SIGINT or SIGTERM, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	var summaryCache cache.Cache
	var redisCache *cache.RedisCache
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		redisCache = cache.NewRedisCache(client, cfg.AnalyticsCacheTTL)
		summaryCache = redisCache
		zlog.Info().Str("addr", cfg.RedisAddr).Msg("Analytics cache enabled")
	}

	srv := server.New(cfg, db, summaryCache)
	if redisCache != nil {
		srv.Health.Register("redis", redisCache.Ping)
	}

	if cfg.NATSURL != "" {
		nc, err := events.Connect(cfg.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Drain()

		forwarder := events.NewNATSForwarder(nc, cfg.NATSSubjectPrefix)
		srv.Dispatcher.Subscribe("nats", forwarder.Handle)
		srv.Health.Register("nats", func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		})
		zlog.Info().Str("url", cfg.NATSURL).Str("prefix", cfg.NATSSubjectPrefix).Msg("Publishing trade events to NATS")
	}

	go srv.RateLimiter.Run(ctx)

	if cfg.ReconcileInterval > 0 {
		go reconcile.NewProcessor(db, cfg.ReconcileInterval).Start(ctx)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(srv.Router)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		zlog.Info().Str("port", cfg.Port).Str("env", cfg.Env).Bool("demo_mode", cfg.DemoMode).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-quit:
	}
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding requests the configured time to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	zlog.Info().Msg("Server exiting")
	return nil
}
