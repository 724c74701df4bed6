// Package server implements the `plexward server` command: HTTP server plus
// the reconciliation sweep scheduler.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"plexward/internal/infrastructure/config"
	"plexward/internal/infrastructure/database"
	"plexward/internal/infrastructure/migration"
	"plexward/internal/infrastructure/scheduler"
	httpRouter "plexward/internal/interfaces/http"
	"plexward/internal/shared/biztime"
	"plexward/internal/shared/constants"
	"plexward/internal/shared/logger"
)

var (
	env           string
	skipMigration bool
	noSweeper     bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and sweeper",
		Long:  `Start the Plexward webhook server, admin API and the periodic reconciliation sweep.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().BoolVar(&skipMigration, "skip-migration", false, "Skip schema migration on startup")
	cmd.Flags().BoolVar(&noSweeper, "no-sweeper", false, "Disable the periodic sweep (webhook-only mode)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	biztime.MustInit("UTC")

	logger.Info("starting plexward",
		"environment", env,
		"version", constants.Version,
	)

	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if !skipMigration {
		manager := migration.NewManager(env)
		if err := manager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log := logger.NewLogger()

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, webhook rate limiting disabled", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		}
		cancel()
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	container := httpRouter.NewContainer(database.Get(), redisClient, cfg, log)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	if err := container.EmailManager.Initialize(initCtx); err != nil {
		logger.Warn("email delivery unavailable at startup", "error", err)
	}
	cancelInit()

	var sched *scheduler.Manager
	if !noSweeper {
		sched, err = scheduler.NewManager(log)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		interval := time.Duration(cfg.Sweeper.IntervalMinutes) * time.Minute
		if err := sched.RegisterSweepJob(container.Sweeper, interval); err != nil {
			return fmt.Errorf("failed to register sweep job: %w", err)
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("scheduler stop failed", "error", err)
			}
		}()
	}

	router := httpRouter.NewRouter(container)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      router.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	drainTimeout := time.Duration(cfg.Server.DrainTimeoutSeconds) * time.Second
	if drainTimeout <= 0 {
		drainTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		return err
	}

	logger.Info("server exited gracefully")
	return nil
}
