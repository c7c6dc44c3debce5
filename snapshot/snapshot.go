// Package snapshot caches balance aggregate state so commands can replay
// only the tail of a stream. Snapshots are an optimisation: a missing or
// stale snapshot never changes the result, it only costs a longer replay.
package snapshot

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/assetledger/balance"
)

// ErrNotFound is returned when no snapshot exists for an account.
var ErrNotFound = errors.New("assetledger: snapshot not found")

// Store persists balance snapshots.
type Store interface {
	Load(ctx context.Context, accountID string) (*balance.Snapshot, error)
	Save(ctx context.Context, s *balance.Snapshot) error
}

// DefaultInterval is the number of events between snapshots.
const DefaultInterval = 100

// Due reports whether a snapshot should be taken after the stream moved
// from version before to version after.
func Due(before, after int64, interval int) bool {
	if interval <= 0 {
		interval = DefaultInterval
	}
	n := int64(interval)
	return after/n > before/n
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*balance.Snapshot
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*balance.Snapshot)}
}

// Load returns a copy of the latest snapshot of accountID.
func (m *Memory) Load(_ context.Context, accountID string) (*balance.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.items[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Save keeps s unless a newer snapshot is already stored.
func (m *Memory) Save(_ context.Context, s *balance.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.items[s.AccountID]; ok && cur.Version >= s.Version {
		return nil
	}
	m.items[s.AccountID] = clone(s)
	return nil
}

func clone(s *balance.Snapshot) *balance.Snapshot {
	cp := *s
	cp.Balances = make(map[string]int64, len(s.Balances))
	for k, v := range s.Balances {
		cp.Balances[k] = v
	}
	cp.References = append([]balance.Reference(nil), s.References...)
	return &cp
}
