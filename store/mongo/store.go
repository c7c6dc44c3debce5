package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
	ledgerstore "github.com/xraph/assetledger/store"
)

// Collection name constants.
const (
	colEvents    = "assetledger_events"
	colWorkflows = "assetledger_workflows"
)

// compile-time interface check
var _ ledgerstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections. The unique stream
// index is what makes concurrent appends fail instead of interleaving.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("assetledger/mongo: migrate %s indexes: %w", col, err)
		}
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

// Append inserts the batch inside a session transaction, so a batch is
// either stored whole or not at all. A racing writer collides on the unique
// stream index and the transaction aborts. Transactions need a replica set
// or sharded cluster.
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

	docs := make([]any, len(events))
	for i, e := range events {
		docs[i] = toEventModel(e)
	}

	col := s.mdb.Collection(colEvents)
	sess, err := col.Database().Client().StartSession()
	if err != nil {
		return current, fmt.Errorf("assetledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		return col.InsertMany(txCtx, docs, options.InsertMany().SetOrdered(true))
	})
	if err != nil {
		if isAppendConflict(err) {
			actual, lerr := s.lastSequence(ctx, stream)
			if lerr != nil {
				actual = expected + 1
			}
			return actual, &event.ConflictError{Stream: stream, Expected: expected, Actual: actual}
		}
		return current, fmt.Errorf("assetledger/mongo: append %s: %w", stream, err)
	}
	return expected + int64(len(events)), nil
}

// isAppendConflict reports whether an aborted append lost a race with
// another writer on the same stream.
func isAppendConflict(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var le mongo.LabeledError
	return errors.As(err, &le) && le.HasErrorLabel("TransientTransactionError")
}

func (s *Store) Load(ctx context.Context, stream event.Stream) ([]*event.Event, error) {
	return s.LoadFrom(ctx, stream, 0)
}

func (s *Store) LoadFrom(ctx context.Context, stream event.Stream, after int64) ([]*event.Event, error) {
	var models []eventModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"aggregate_type": string(stream.Type),
			"aggregate_id":   stream.ID,
			"sequence":       bson.M{"$gt": after},
		}).
		Sort(bson.D{{Key: "sequence", Value: 1}}).
		Scan(ctx)
	if err != nil && !isNoDocuments(err) {
		return nil, fmt.Errorf("assetledger/mongo: load %s: %w", stream, err)
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
	var m eventModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"aggregate_type": string(stream.Type), "aggregate_id": stream.ID}).
		Sort(bson.D{{Key: "sequence", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("assetledger/mongo: last sequence of %s: %w", stream, err)
	}
	return m.Sequence, nil
}

// ==================== Workflow Store ====================

func (s *Store) SaveWorkflow(ctx context.Context, w *saga.Workflow) error {
	m := toWorkflowModel(w)

	_, err := s.mdb.Collection(colWorkflows).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("assetledger/mongo: save workflow %s: %w", w.ID, err)
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, workflowID string) (*saga.Workflow, error) {
	var m workflowModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": workflowID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, saga.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("assetledger/mongo: get workflow: %w", err)
	}
	return fromWorkflowModel(&m), nil
}

func (s *Store) ListWorkflows(ctx context.Context, opts saga.ListOpts) ([]*saga.Workflow, error) {
	var models []workflowModel

	filter := bson.M{}
	if opts.ParentID != "" {
		filter["parent_id"] = opts.ParentID
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, st := range opts.Statuses {
			statuses[i] = string(st)
		}
		filter["status"] = bson.M{"$in": statuses}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil && !isNoDocuments(err) {
		return nil, fmt.Errorf("assetledger/mongo: list workflows: %w", err)
	}

	result := make([]*saga.Workflow, len(models))
	for i := range models {
		result[i] = fromWorkflowModel(&models[i])
	}
	return result, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colEvents: {
			{
				Keys:    bson.D{{Key: "aggregate_type", Value: 1}, {Key: "aggregate_id", Value: 1}, {Key: "sequence", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "type", Value: 1}}},
		},
		colWorkflows: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
	}
}
