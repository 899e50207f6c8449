package core

import (
	"context"
	"errors"
	"time"

	"github.com/quorumworks/tallyd/internal/domain/model"
)

var (
	// ErrAlreadyLocked is returned by Acquire when another holder has the lock.
	// Implementations wrap it with the current holder and acquisition time.
	ErrAlreadyLocked = errors.New("operation already locked")
	// ErrNotLockHolder is returned by Release when the presented token does not
	// match the stored lock, including when the lock already expired.
	ErrNotLockHolder = errors.New("not the lock holder")
)

// AcquireLockParams groups parameters for LockManager.Acquire.
type AcquireLockParams struct {
	Holder string
	TTL    time.Duration
}

// LockManager defines the interface for the distributed lock that serializes
// operations per (election, operation type) across orchestrator instances.
type LockManager interface {
	// Acquire takes the lock and returns an opaque token the holder must
	// present on release. When another holder has the lock, Acquire returns
	// a conflict error carrying the current holder in its message.
	Acquire(ctx context.Context, key model.LockKey, params AcquireLockParams) (string, error)

	// Release frees the lock only when token matches the stored value, so a
	// holder whose lock already expired cannot release a successor's lock.
	Release(ctx context.Context, key model.LockKey, token string) error

	// Peek reports the current holder without touching the lock.
	// Returns nil when the lock is free.
	Peek(ctx context.Context, key model.LockKey) (*model.LockStatus, error)
}
