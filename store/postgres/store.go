package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
	ledgerstore "github.com/xraph/assetledger/store"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("assetledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("assetledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

// Append inserts the batch with one multi-row INSERT. The unique index on
// (aggregate_type, aggregate_id, sequence) turns a lost race into an insert
// error, which is reported as a ConflictError.
func (s *Store) Append(ctx context.Context, stream event.Stream, expected int64, events []*event.Event) (int64, error) {
	current, err := s.lastSequence(ctx, stream)
	if err != nil {
		return 0, err
	}
	if current != expected {
		return current, &event.ConflictError{Stream: stream, Expected: expected, Actual: current}
	}
	if len(events) == 0 {
		return current, nil
	}
	if err := event.Prepare(stream, expected, events); err != nil {
		return current, err
	}

	models := make([]eventModel, len(events))
	for i, e := range events {
		models[i] = *toEventModel(e)
	}
	if _, err := s.pg.NewInsert(&models).Exec(ctx); err != nil {
		if actual, lerr := s.lastSequence(ctx, stream); lerr == nil && actual != expected {
			return actual, &event.ConflictError{Stream: stream, Expected: expected, Actual: actual}
		}
		return current, fmt.Errorf("assetledger/postgres: append %s: %w", stream, err)
	}
	return expected + int64(len(events)), nil
}

func (s *Store) Load(ctx context.Context, stream event.Stream) ([]*event.Event, error) {
	return s.LoadFrom(ctx, stream, 0)
}

func (s *Store) LoadFrom(ctx context.Context, stream event.Stream, after int64) ([]*event.Event, error) {
	var models []eventModel
	err := s.pg.NewSelect(&models).
		Where("aggregate_type = $1", string(stream.Type)).
		Where("aggregate_id = $2", stream.ID).
		Where("sequence > $3", after).
		OrderExpr("sequence ASC").
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("assetledger/postgres: load %s: %w", stream, err)
	}

	result := make([]*event.Event, 0, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, nil
}

func (s *Store) lastSequence(ctx context.Context, stream event.Stream) (int64, error) {
	var last int64
	err := s.pg.NewRaw(`
		SELECT COALESCE(MAX(sequence), 0) FROM assetledger_events
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, string(stream.Type), stream.ID).Scan(ctx, &last)
	if err != nil {
		return 0, fmt.Errorf("assetledger/postgres: last sequence of %s: %w", stream, err)
	}
	return last, nil
}

// ==================== Workflow Store ====================

func (s *Store) SaveWorkflow(ctx context.Context, w *saga.Workflow) error {
	m := toWorkflowModel(w)
	_, err := s.pg.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("steps = EXCLUDED.steps").
		Set("compensations = EXCLUDED.compensations").
		Set("compensated = EXCLUDED.compensated").
		Set("error = EXCLUDED.error").
		Set("compensation_errors = EXCLUDED.compensation_errors").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("assetledger/postgres: save workflow %s: %w", w.ID, err)
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, workflowID string) (*saga.Workflow, error) {
	m := new(workflowModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", workflowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, saga.ErrWorkflowNotFound
		}
		return nil, err
	}
	return fromWorkflowModel(m)
}

func (s *Store) ListWorkflows(ctx context.Context, opts saga.ListOpts) ([]*saga.Workflow, error) {
	var models []workflowModel
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if opts.ParentID != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("parent_id = $%d", argIdx), opts.ParentID)
	}
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		args := make([]any, len(opts.Statuses))
		for i, st := range opts.Statuses {
			argIdx++
			placeholders[i] = fmt.Sprintf("$%d", argIdx)
			args[i] = string(st)
		}
		q = q.Where("status IN ("+strings.Join(placeholders, ", ")+")", args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("created_at ASC")

	if err := q.Scan(ctx); err != nil && !isNoRows(err) {
		return nil, err
	}

	result := make([]*saga.Workflow, 0, len(models))
	for i := range models {
		w, err := fromWorkflowModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
