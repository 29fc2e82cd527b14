package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/dealerhq/dealer-be/internal/api/handler"
	"github.com/dealerhq/dealer-be/internal/api/router"
	"github.com/dealerhq/dealer-be/internal/config"
	"github.com/dealerhq/dealer-be/internal/engine/loaner"
	"github.com/dealerhq/dealer-be/internal/engine/schedule"
	"github.com/dealerhq/dealer-be/internal/engine/transition"
	"github.com/dealerhq/dealer-be/internal/metrics"
	"github.com/dealerhq/dealer-be/internal/notify"
	"github.com/dealerhq/dealer-be/internal/store"
	"github.com/dealerhq/dealer-be/internal/sweep"
	"github.com/dealerhq/dealer-be/shared/logger"
	"github.com/dealerhq/dealer-be/shared/postgresql"
	"github.com/dealerhq/dealer-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client; the API runs fine without a broker, the
	// UI just falls back to polling.
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")
	} else {
		appLogger.Info("RabbitMQ disabled, change events will not be published")
	}

	// Wire the engine
	st := store.NewStore(dbClient, appLogger.Logger)
	publisher := notify.NewPublisher(rabbitClient, appLogger.Logger)
	m := metrics.New()

	executor := transition.NewExecutor(st, publisher, appLogger.Logger)
	executor.SetBulkConcurrency(cfg.Engine.BulkConcurrency)

	deps := &handler.Dependencies{
		Logger:     appLogger.Logger,
		Store:      st,
		Executor:   executor,
		Undo:       transition.NewWindow(0),
		Loaners:    loaner.NewTracker(st, publisher, appLogger.Logger),
		Metrics:    m,
		Thresholds: thresholdsFromConfig(&cfg.Engine),
		Health:     dbClient,
	}

	// Keep the dashboard gauges fresh as the store changes: the watcher
	// re-scans on every change event, or on an interval without a broker.
	gaugeRefresher := sweep.New(sweep.Config{
		Store:      st,
		Metrics:    m,
		Thresholds: deps.Thresholds,
		Logger:     appLogger.Logger,
	})
	watcher := notify.NewWatcher(rabbitClient, cfg.Engine.WatchPollInterval, func(ctx context.Context, _ *notify.Event) {
		if err := gaugeRefresher.Scan(ctx); err != nil {
			appLogger.Warn("Gauge refresh failed",
				slog.String("error", err.Error()),
			)
		}
	}, appLogger.Logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	go watcher.Run(watchCtx, "api-service")

	// Initialize router
	r := initRouter(cfg.App.Environment, deps)

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	cleanup := func() {
		cancel()
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.EnableCaller,
		TimeFormat: time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// thresholdsFromConfig maps engine tuning config onto thresholds, falling
// back to the documented defaults for unset values.
func thresholdsFromConfig(cfg *config.EngineConfig) schedule.Thresholds {
	th := schedule.DefaultThresholds()
	if cfg.CriticalDays > 0 {
		th.CriticalDays = cfg.CriticalDays
	}
	if cfg.HighDays > 0 {
		th.HighDays = cfg.HighDays
	}
	if cfg.MediumDays > 0 {
		th.MediumDays = cfg.MediumDays
	}
	if cfg.DueSoonDays > 0 {
		th.DueSoonDays = cfg.DueSoonDays
	}
	if cfg.GracePeriod > 0 {
		th.Grace = cfg.GracePeriod
	}
	return th
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
