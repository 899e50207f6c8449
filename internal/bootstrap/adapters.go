package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/quorumworks/tallyd/config"
	"github.com/quorumworks/tallyd/internal/adapters/amqp"
	"github.com/quorumworks/tallyd/internal/adapters/chunkworker"
	"github.com/quorumworks/tallyd/internal/adapters/reaper"
	"github.com/quorumworks/tallyd/internal/data"
	"github.com/quorumworks/tallyd/internal/domain/model"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
	"github.com/quorumworks/tallyd/internal/service"
	"github.com/quorumworks/tallyd/internal/service/failurenotifier"
)

// WorkersConfig contains configuration for the chunk worker pools.
type WorkersConfig struct {
	DB              *sql.DB
	Broker          *amqp.Client
	Logger          *slog.Logger
	Pools           config.WorkersConfig
	Engine          config.EngineConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunWorkers starts one consumer pool per operation type and blocks until the
// context is cancelled or a pool fails. The pools share the broker connection;
// each gets a dedicated channel so prefetch windows stay independent. The
// first pool error cancels the rest so the supervisor can restart the whole
// service instead of limping along partially deaf.
func RunWorkers(ctx context.Context, cfg WorkersConfig) error {
	if cfg.DB == nil {
		return errors.New("database connection is required")
	}
	if cfg.Broker == nil {
		return errors.New("broker client is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := newEngineClient(cfg.Engine)
	if err != nil {
		return fmt.Errorf("build engine client: %w", err)
	}

	jobs := data.NewJobRepo(cfg.DB, data.RepoConfig{Logger: logger})
	chunks := &data.ChunkRepo{DB: cfg.DB}
	items := &data.CipherItemRepo{DB: cfg.DB}
	shares := &data.ShareRepo{DB: cfg.DB}
	results := &data.ResultRepo{DB: cfg.DB}
	audit := data.NewAuditRepo(cfg.DB, nil)

	combiner := service.MustNewCombinerService(service.CombinerOptions{
		Shares:  shares,
		Results: results,
		Chunks:  chunks,
		Engine:  engine,
		Logger:  logger,
		Metrics: cfg.Metrics,
	})

	group, ctx := errgroup.WithContext(ctx)

	for _, op := range model.AllOperationTypes() {
		pool := cfg.Pools.Pool(op)

		consumer, err := cfg.Broker.Consume(op, consumerTag(op), pool.Prefetch)
		if err != nil {
			return fmt.Errorf("start %s consumer: %w", op, err)
		}
		defer closeConsumer(consumer, logger)

		runner, err := chunkworker.NewRunner(chunkworker.RunnerOptions{
			Operation:   op,
			Deliveries:  consumer.Deliveries,
			Jobs:        jobs,
			Chunks:      chunks,
			Items:       items,
			Shares:      shares,
			Results:     results,
			Engine:      engine,
			Combiner:    combiner,
			Publisher:   cfg.Broker,
			Audit:       audit,
			Notifier:    cfg.FailureNotifier,
			Logger:      logger,
			Metrics:     cfg.Metrics,
			Concurrency: pool.Concurrency,
			MaxRetries:  cfg.Pools.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("create %s worker pool: %w", op, err)
		}

		group.Go(func() error {
			if runErr := runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("%s worker pool: %w", op, runErr)
			}
			return nil
		})
	}

	// Asynchronous connection loss surfaces as a pool failure; otherwise the
	// pools would idle forever on dead delivery channels.
	group.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr, ok := <-cfg.Broker.Closed():
			if !ok || amqpErr == nil {
				return nil
			}
			return fmt.Errorf("broker connection lost: %w", amqpErr)
		}
	})

	return group.Wait()
}

// consumerTag builds a broker-visible identity for one pool's channel.
func consumerTag(op model.OperationType) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "tallyd"
	}
	return fmt.Sprintf("%s/%s", hostname, op)
}

func closeConsumer(c *amqp.Consumer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("close consumer channel", "queue", c.Queue(), "error", err)
	}
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the job reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
