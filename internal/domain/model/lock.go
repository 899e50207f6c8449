package model

import (
	"fmt"
	"time"
)

// LockInfo is the stored value of an operation lock. Holder and AcquiredAt are
// surfaced to polling clients; the token stays server-side and authorizes release.
type LockInfo struct {
	Token       string    `json:"token"`
	Holder      string    `json:"holder"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpectedEnd time.Time `json:"expected_end"`
}

// LockKey identifies the one-active-operation-per-election exclusion scope.
type LockKey struct {
	ElectionID string
	Operation  OperationType
}

// String renders the key in the form used by the lock store.
func (k LockKey) String() string {
	return fmt.Sprintf("%s:%s", k.ElectionID, k.Operation)
}

// LockStatus is the read-only view of a lock exposed by the progress surface.
type LockStatus struct {
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquired_at"`
}
