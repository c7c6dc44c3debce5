// Package store defines the unified persistence contract of the ledger: the
// append-only event log and the saga workflow store. Backends live in the
// memory, postgres, sqlite and mongo subpackages.
package store

import (
	"context"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
)

// Store is the unified storage interface for all ledger state.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// so that every backend documents the full surface it implements.
type Store interface {
	// Event log methods
	Append(ctx context.Context, stream event.Stream, expected int64, events []*event.Event) (int64, error)
	Load(ctx context.Context, stream event.Stream) ([]*event.Event, error)
	LoadFrom(ctx context.Context, stream event.Stream, after int64) ([]*event.Event, error)

	// Workflow methods
	SaveWorkflow(ctx context.Context, w *saga.Workflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*saga.Workflow, error)
	ListWorkflows(ctx context.Context, opts saga.ListOpts) ([]*saga.Workflow, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// compile-time checks that the unified store satisfies both domain contracts
var (
	_ event.Store = (Store)(nil)
	_ saga.Store  = (Store)(nil)
)
