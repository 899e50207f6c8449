// Package redislock provides the Redis-backed operation lock for the tallyd system.
package redislock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/quorumworks/tallyd/internal/core"
	"github.com/quorumworks/tallyd/internal/domain/model"
)

var (
	// ErrAlreadyLocked is re-exported from core for callers holding a concrete Manager.
	ErrAlreadyLocked = core.ErrAlreadyLocked

	// ErrNotLockHolder is re-exported from core for callers holding a concrete Manager.
	ErrNotLockHolder = core.ErrNotLockHolder
)

// DefaultKeyPrefix is prepended to every lock key unless overridden.
const DefaultKeyPrefix = "tallyd:oplock:"

// releaseScript deletes the lock only when the stored token matches ARGV[1].
// Returns 1 on delete, 0 when the key is already gone, -1 on token mismatch.
var releaseScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local ok, info = pcall(cjson.decode, raw)
if not ok or info.token ~= ARGV[1] then
  return -1
end
redis.call("DEL", KEYS[1])
return 1
`)

// Manager is the Redis-based lock manager that serializes operation initiation
// per (election, operation type). The stored value is a JSON LockInfo; the TTL
// bounds how long a crashed orchestrator can block its successors.
type Manager struct {
	client redis.UniversalClient
	prefix string
}

// NewManager creates a lock manager with the default key prefix.
func NewManager(client redis.UniversalClient) *Manager {
	return &Manager{
		client: client,
		prefix: DefaultKeyPrefix,
	}
}

// NewManagerWithPrefix creates a lock manager with a custom key prefix.
func NewManagerWithPrefix(client redis.UniversalClient, prefix string) *Manager {
	return &Manager{
		client: client,
		prefix: prefix,
	}
}

func (m *Manager) key(key model.LockKey) string {
	return m.prefix + key.String()
}

// Acquire takes the lock with SET NX and a TTL. The returned token authorizes
// the matching Release call and nothing else.
func (m *Manager) Acquire(
	ctx context.Context,
	key model.LockKey,
	params core.AcquireLockParams,
) (string, error) {
	if key.ElectionID == "" {
		return "", errors.New("lock key election id cannot be empty")
	}
	if !key.Operation.Valid() {
		return "", fmt.Errorf("invalid lock key operation type: %s", key.Operation)
	}
	if params.Holder == "" {
		return "", errors.New("lock holder cannot be empty")
	}
	if params.TTL <= 0 {
		return "", errors.New("lock ttl must be positive")
	}

	now := time.Now().UTC()
	info := model.LockInfo{
		Token:       uuid.NewString(),
		Holder:      params.Holder,
		AcquiredAt:  now,
		ExpectedEnd: now.Add(params.TTL),
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("marshal lock info: %w", err)
	}

	cmd := m.client.SetArgs(ctx, m.key(key), data, redis.SetArgs{Mode: "NX", TTL: params.TTL})
	if _, err := cmd.Result(); err != nil {
		// When NX is not met the key exists; go-redis reports that as redis.Nil.
		if errors.Is(err, redis.Nil) {
			return "", m.alreadyLocked(ctx, key)
		}
		return "", fmt.Errorf("redis SET NX: %w", err)
	}

	return info.Token, nil
}

// alreadyLocked reads the current holder so the conflict error can name it.
// The lock may expire between the failed SET and this read; the error stays
// accurate enough for a retrying caller either way.
func (m *Manager) alreadyLocked(ctx context.Context, key model.LockKey) error {
	status, err := m.Peek(ctx, key)
	if err != nil || status == nil {
		return ErrAlreadyLocked
	}
	return fmt.Errorf("%w by %s since %s",
		ErrAlreadyLocked, status.Holder, status.AcquiredAt.Format(time.RFC3339))
}

// Release frees the lock via an atomic compare-and-delete so a holder whose
// lock already expired cannot remove a successor's lock.
func (m *Manager) Release(ctx context.Context, key model.LockKey, token string) error {
	if token == "" {
		return ErrNotLockHolder
	}

	n, err := releaseScript.Run(ctx, m.client, []string{m.key(key)}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if n != 1 {
		return ErrNotLockHolder
	}
	return nil
}

// Peek reports the current holder without touching the lock. A nil status
// means the lock is free.
func (m *Manager) Peek(ctx context.Context, key model.LockKey) (*model.LockStatus, error) {
	raw, err := m.client.Get(ctx, m.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var info model.LockInfo
	if unmarshalErr := json.Unmarshal([]byte(raw), &info); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal lock info: %w", unmarshalErr)
	}

	return &model.LockStatus{
		Holder:     info.Holder,
		AcquiredAt: info.AcquiredAt,
	}, nil
}

var _ core.LockManager = (*Manager)(nil)
