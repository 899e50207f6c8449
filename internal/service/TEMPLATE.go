// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExampleRepository, etc.) that don't exist.
// Use this as a reference when creating new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// This file demonstrates the standard pattern for all services in the service layer.
// Use this as a reference when creating new services.
//
// KEY PRINCIPLES:
// 1. All services use an Options struct for dependency injection
// 2. Constructors come in pairs: NewXService(opts) (*XService, error) validates and
//    returns errors; MustNewXService(opts) *XService panics and is reserved for wiring
//    code that runs at startup
// 3. Services depend on port interfaces from internal/core, never on concrete
//    repositories
// 4. Optional dependencies (logger, metrics, lock manager) are nil-checked before use
// 5. All methods accept context.Context as the first parameter
// 6. Errors are wrapped with operation context: fmt.Errorf("operation: %w", err)
// 7. Input validation failures use the apperrors helpers so the HTTP layer can map
//    them to status codes
// 8. Services never import internal/data, internal/adapters, or internal/http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
	apperrors "github.com/quorumworks/tallyd/internal/errors"
	"github.com/quorumworks/tallyd/internal/observability/statsd"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// ExampleOptions groups dependencies for ExampleService.
//
// RULES:
// - Required dependencies are repository interfaces from internal/core
// - Optional dependencies (Logger, Metrics) are documented as such
// - Group related tunables into a nested config struct instead of adding
//   loose fields
type ExampleOptions struct {
	Repo    core.ExampleRepository // Required: primary repository
	Logger  *slog.Logger           // Optional: structured logger
	Metrics statsd.Sink            // Optional: emission sink for counters/timings
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Service Struct (private fields)
// ═══════════════════════════════════════════════════════════════════════════

// ExampleService provides business logic for example domain operations.
//
// RESPONSIBILITIES:
// - Validation and normalization of caller input
// - Cross-repository orchestration
// - Metric emission for the operations it owns
//
// DOES NOT:
// - Import from internal/data (depends on interfaces only)
// - Import from internal/http (transport depends on service, not vice versa)
// - Import from internal/adapters (adapters depend on service, not vice versa)
type ExampleService struct {
	repo    core.ExampleRepository
	logger  *slog.Logger
	metrics statsd.Sink
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Constructor Pair
// ═══════════════════════════════════════════════════════════════════════════

// NewExampleService constructs a new ExampleService.
//
// RULES:
// - Validate required dependencies and return an error (never panic here)
// - Derive a component-scoped logger with opts.Logger.With("component", ...)
// - Keep the constructor simple; no I/O
func NewExampleService(opts ExampleOptions) (*ExampleService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ExampleRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "example_service")
	}

	return &ExampleService{
		repo:    opts.Repo,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// MustNewExampleService constructs a new ExampleService and panics on error.
// Use this only in startup wiring where a bad option set should abort the process.
func MustNewExampleService(opts ExampleOptions) *ExampleService {
	svc, err := NewExampleService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create ExampleService: %v", err))
	}
	return svc
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Operation Methods
// ═══════════════════════════════════════════════════════════════════════════

// Get retrieves an example entity by ID.
//
// RULES:
// - Accept context.Context first
// - Validate input with apperrors so transport maps it to a 4xx
// - Wrap repository errors with the failing operation and identifiers
func (s *ExampleService) Get(ctx context.Context, id string) (*model.Example, error) {
	if id == "" {
		return nil, apperrors.Validation("example id is required")
	}

	example, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get example %s: %w", id, err)
	}
	return example, nil
}

// Settle demonstrates a mutating operation with optional observability.
// Optional dependencies are nil-checked at every use site.
func (s *ExampleService) Settle(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.Validation("example id is required")
	}

	if err := s.repo.Settle(ctx, id); err != nil {
		return fmt.Errorf("settle example %s: %w", id, err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "example settled", "id", id)
	}
	if s.metrics != nil {
		s.metrics.Count("example.settled", 1, nil)
	}
	return nil
}
