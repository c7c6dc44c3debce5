// Package memory provides an in-process store.Store used by tests and
// single-node deployments without durability requirements.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
	ledgerstore "github.com/xraph/assetledger/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Event streams keyed by "type/id"
	streams map[string][]*event.Event

	// Workflow storage
	workflows map[string]*saga.Workflow
}

func New() *Store {
	return &Store{
		streams:   make(map[string][]*event.Event),
		workflows: make(map[string]*saga.Workflow),
	}
}

// Event log implementation

func (s *Store) Append(_ context.Context, stream event.Stream, expected int64, events []*event.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stream.String()
	current := int64(len(s.streams[key]))
	if current != expected {
		return current, &event.ConflictError{Stream: stream, Expected: expected, Actual: current}
	}
	if len(events) == 0 {
		return current, nil
	}
	if err := event.Prepare(stream, expected, events); err != nil {
		return current, err
	}

	for _, e := range events {
		s.streams[key] = append(s.streams[key], cloneEvent(e))
	}
	return expected + int64(len(events)), nil
}

func (s *Store) Load(ctx context.Context, stream event.Stream) ([]*event.Event, error) {
	return s.LoadFrom(ctx, stream, 0)
}

func (s *Store) LoadFrom(_ context.Context, stream event.Stream, after int64) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.streams[stream.String()]
	if after < 0 {
		after = 0
	}
	if after >= int64(len(stored)) {
		return []*event.Event{}, nil
	}

	result := make([]*event.Event, 0, int64(len(stored))-after)
	for _, e := range stored[after:] {
		result = append(result, cloneEvent(e))
	}
	return result, nil
}

// Workflow implementation

func (s *Store) SaveWorkflow(_ context.Context, w *saga.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflows[w.ID] = w.Clone()
	return nil
}

func (s *Store) GetWorkflow(_ context.Context, workflowID string) (*saga.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if w, ok := s.workflows[workflowID]; ok {
		return w.Clone(), nil
	}
	return nil, saga.ErrWorkflowNotFound
}

func (s *Store) ListWorkflows(_ context.Context, opts saga.ListOpts) ([]*saga.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*saga.Workflow, 0)
	for _, w := range s.workflows {
		if opts.ParentID != "" && w.ParentID != opts.ParentID {
			continue
		}
		if len(opts.Statuses) > 0 && !hasStatus(opts.Statuses, w.Status) {
			continue
		}
		result = append(result, w.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

func hasStatus(list []saga.Status, status saga.Status) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func cloneEvent(e *event.Event) *event.Event {
	cp := *e
	cp.Payload = append(json.RawMessage(nil), e.Payload...)
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
