// Package mocks provides mock implementations for testing the tallyd orchestration system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// Generated files are checked in so a fresh clone tests without a generate step.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, List, ListActive, Stats, IncrementProcessed, IncrementFailed, MarkFailed
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/quorumworks/tallyd/internal/core JobRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStaleJobs, DeleteOldJobs
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_repository_mock.go github.com/quorumworks/tallyd/internal/core ReaperRepository

// Generate mock for ChunkRepository interface from internal/core package.
// This creates MockChunkRepository with methods for all ChunkRepository interface methods:
// SaveAssignments, GetAssignment, CountAssignments, SaveTally, GetTally
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=chunk_repository_mock.go github.com/quorumworks/tallyd/internal/core ChunkRepository

// Generate mock for CipherItemRepository interface from internal/core package.
// This creates MockCipherItemRepository with methods for all CipherItemRepository interface methods:
// ListIDs, ListByIDs, Count, BulkInsert
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cipher_item_repository_mock.go github.com/quorumworks/tallyd/internal/core CipherItemRepository

// Generate mock for ShareRepository interface from internal/core package.
// This creates MockShareRepository with methods for all ShareRepository interface methods:
// InsertPartial, InsertCompensated, CountForChunk, ListForChunk
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=share_repository_mock.go github.com/quorumworks/tallyd/internal/core ShareRepository

// Generate mock for ResultRepository interface from internal/core package.
// This creates MockResultRepository with methods for all ResultRepository interface methods:
// Insert, GetByChunk, ListByElection, Count
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=result_repository_mock.go github.com/quorumworks/tallyd/internal/core ResultRepository

// Generate mock for AuditRepository interface from internal/core package.
// This creates MockAuditRepository with methods for all AuditRepository interface methods:
// RecordStart, RecordFinish, TimingStats, ListFailures, DeleteBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=audit_repository_mock.go github.com/quorumworks/tallyd/internal/core AuditRepository

// Generate mock for LockManager interface from internal/core package.
// This creates MockLockManager with methods for all LockManager interface methods:
// Acquire, Release, Peek
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=lock_manager_mock.go github.com/quorumworks/tallyd/internal/core LockManager

// Generate mock for ChunkPublisher interface from internal/core package.
// This creates MockChunkPublisher with methods for all ChunkPublisher interface methods:
// PublishChunk
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=chunk_publisher_mock.go github.com/quorumworks/tallyd/internal/core ChunkPublisher

// Generate mock for CryptoEngine interface from internal/core package.
// This creates MockCryptoEngine with methods for all CryptoEngine interface methods:
// TallyChunk, ComputePartialShare, ComputeCompensatedShare, CombineShares
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=crypto_engine_mock.go github.com/quorumworks/tallyd/internal/core CryptoEngine
