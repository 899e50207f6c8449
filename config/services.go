package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the HTTP API (operations + progress surfaces).
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeWorkers runs the chunk worker pools.
	ServiceModeWorkers ServiceMode = "workers"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeAPI,
		ServiceModeWorkers,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI, ServiceModeWorkers, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, workers, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// OrchestratorConfig contains job initiation configuration.
type OrchestratorConfig struct {
	// ChunkSize is the maximum number of ballots per tally chunk.
	ChunkSize int `env:"CHUNK_SIZE" envDefault:"1000"`

	// LockTTL is how long an operation lock lives without release. It must
	// comfortably exceed the worst-case job duration so a crashed initiator
	// cannot wedge an election forever.
	LockTTL time.Duration `env:"LOCK_TTL" envDefault:"30m"`

	// LockHolder identifies this instance in lock metadata. Defaults to the
	// hostname when empty.
	LockHolder string `env:"LOCK_HOLDER" envDefault:""`
}

// Sanitize applies guardrails to orchestrator configuration values.
func (o *OrchestratorConfig) Sanitize() {
	if o.ChunkSize < 1 {
		o.ChunkSize = 1000
	}
	if o.LockTTL < time.Minute {
		o.LockTTL = time.Minute
	}
}

// WorkerPoolConfig configures one operation type's consumer pool.
type WorkerPoolConfig struct {
	// Concurrency is the number of worker goroutines.
	Concurrency int `env:"CONCURRENCY" envDefault:"2"`

	// Prefetch is the per-channel unacknowledged message limit. Chunk
	// processing is engine-bound, so 1 keeps work spread across instances.
	Prefetch int `env:"PREFETCH" envDefault:"1"`
}

// Sanitize applies guardrails to worker pool configuration values.
func (w *WorkerPoolConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Prefetch < 1 {
		w.Prefetch = 1
	}
}

// WorkersConfig groups the per-operation pools and shared retry policy.
type WorkersConfig struct {
	Tally       WorkerPoolConfig `envPrefix:"WORKER_TALLY_"`
	Partial     WorkerPoolConfig `envPrefix:"WORKER_PARTIAL_"`
	Compensated WorkerPoolConfig `envPrefix:"WORKER_COMPENSATED_"`
	Combine     WorkerPoolConfig `envPrefix:"WORKER_COMBINE_"`

	// MaxRetries is how many times a transiently failing chunk is republished
	// before it is failed and dead-lettered.
	MaxRetries int `env:"WORKER_MAX_RETRIES" envDefault:"3"`
}

// Sanitize applies guardrails to all worker pool configuration values.
func (w *WorkersConfig) Sanitize() {
	w.Tally.Sanitize()
	w.Partial.Sanitize()
	w.Compensated.Sanitize()
	w.Combine.Sanitize()
	if w.MaxRetries < 0 {
		w.MaxRetries = 0
	}
}

// Pool returns the pool configuration for the given operation type.
func (w *WorkersConfig) Pool(op model.OperationType) WorkerPoolConfig {
	switch op {
	case model.OperationTally:
		return w.Tally
	case model.OperationPartialDecryption:
		return w.Partial
	case model.OperationCompensatedDecryption:
		return w.Compensated
	case model.OperationCombine:
		return w.Combine
	default:
		return WorkerPoolConfig{Concurrency: 1, Prefetch: 1}
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// StaleMaxAge is the maximum time an active job may go without counter
	// movement before the reaper marks it failed.
	StaleMaxAge time.Duration `env:"REAPER_STALE_MAX_AGE" envDefault:"2h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// AuditMaxAge is the maximum age for chunk audit rows before deletion.
	// Audit rows keep per-attempt history after their jobs are reaped.
	AuditMaxAge time.Duration `env:"REAPER_AUDIT_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.StaleMaxAge < 10*time.Minute {
		r.StaleMaxAge = 10 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.AuditMaxAge < 24*time.Hour {
		r.AuditMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
