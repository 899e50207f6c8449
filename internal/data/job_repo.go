package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotActive is returned when a counter update targets a job whose
	// chunks are already fully accounted for.
	ErrJobNotActive = errors.New("job is no longer active")
	// ErrDuplicateActiveJob is returned when an election already has a queued or
	// in-progress job for the requested operation type.
	ErrDuplicateActiveJob = errors.New("an active job for this election and operation already exists")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for job management.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  election_id,
  operation_type,
  status,
  total_chunks,
  processed_chunks,
  failed_chunks,
  created_by,
  metadata,
  error_message,
  started_at,
  completed_at,
  created_at,
  updated_at
`

// jobColumnNames mirrors jobColumns for queries assembled by the database
// query builder, which sanitizes each identifier individually.
var jobColumnNames = []string{
	"id",
	"election_id",
	"operation_type",
	"status",
	"total_chunks",
	"processed_chunks",
	"failed_chunks",
	"created_by",
	"metadata",
	"error_message",
	"started_at",
	"completed_at",
	"created_at",
	"updated_at",
}
