package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/adapters/amqp"
	"github.com/quorumworks/tallyd/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		// The configured logger does not exist yet; use the default handler.
		slog.Error("load config failed", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}

	logger := bootstrap.InitLogger(cfg.Log)
	if err := run(ctx, logger, &cfg); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) error {
	// Log startup info
	logStartupInfo(ctx, logger, cfg)

	// Validate configuration
	if err := bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}

	// Initialize infrastructure
	db, redisClient, broker, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}
	defer func() {
		if cerr := broker.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close broker failed", "error", cerr)
		}
	}()

	// Run migrations if enabled
	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	// Initialize and run services
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
		Broker:      broker,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:      cfg,
		Services:    services,
		DB:          db,
		RedisClient: redisClient,
		Broker:      broker,
		Logger:      logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting tallyd service",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"engine_url", cfg.Engine.URL,
		"enabled_services", enabledServices)
}

// initInfrastructure connects shared dependencies used by the service runtime.
// The broker connection is shared across modes: the API publishes chunk
// messages on it and the worker pools consume from it on dedicated channels.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, *amqp.Client, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect db: %w", err)
	}

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, nil, closeOnInitFailure(ctx, db, logger, fmt.Errorf("connect redis: %w", err))
	}

	broker, err := bootstrap.ConnectBroker(bootstrap.BrokerConfig{
		Broker: cfg.Broker,
		Logger: logger,
	})
	if err != nil {
		err = fmt.Errorf("connect broker: %w", err)
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis after broker connect failure", "error", cerr)
			err = errors.Join(err, fmt.Errorf("close redis: %w", cerr))
		}
		return nil, nil, nil, closeOnInitFailure(ctx, db, logger, err)
	}

	return db, redisClient, broker, nil
}

// closeOnInitFailure closes the database after a later infrastructure step
// failed, joining the close error onto the original one.
func closeOnInitFailure(ctx context.Context, db *sql.DB, logger *slog.Logger, err error) error {
	if cerr := db.Close(); cerr != nil {
		logger.ErrorContext(ctx, "close database after infrastructure failure", "error", cerr)
		return errors.Join(err, fmt.Errorf("close database: %w", cerr))
	}
	return err
}
