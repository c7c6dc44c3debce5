package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/assetledger/id"
)

var (
	// ErrConcurrencyConflict is matched by every ConflictError.
	ErrConcurrencyConflict = errors.New("assetledger: concurrency conflict")

	// ErrUnknownType is returned when decoding an unregistered event type.
	ErrUnknownType = errors.New("assetledger: unknown event type")

	// ErrForeignEvent is returned when an event does not belong to the stream it is appended to.
	ErrForeignEvent = errors.New("assetledger: event does not belong to stream")
)

// ConflictError reports that a stream moved past the sequence a writer expected.
type ConflictError struct {
	Stream   Stream
	Expected int64
	Actual   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("assetledger: concurrency conflict on %s: expected sequence %d, found %d",
		e.Stream, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrConcurrencyConflict) hold.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

// Store is the append-only event log.
type Store interface {
	// Append adds events after expected, the caller's view of the last sequence
	// (0 for a new stream). It returns the new last sequence or a *ConflictError.
	Append(ctx context.Context, stream Stream, expected int64, events []*Event) (int64, error)

	// Load returns all events of stream in sequence order. Unknown streams yield an empty slice.
	Load(ctx context.Context, stream Stream) ([]*Event, error)

	// LoadFrom returns events with a sequence greater than after.
	LoadFrom(ctx context.Context, stream Stream, after int64) ([]*Event, error)
}

// Prepare stamps events with their position in stream. Store implementations
// call it before persisting so every backend assigns sequences the same way.
func Prepare(stream Stream, expected int64, events []*Event) error {
	for i, e := range events {
		if e.AggregateType == "" && e.AggregateID == "" {
			e.AggregateType, e.AggregateID = stream.Type, stream.ID
		}
		if e.Stream() != stream {
			return fmt.Errorf("%w: %s into %s", ErrForeignEvent, e.Stream(), stream)
		}
		e.Sequence = expected + int64(i) + 1
		if e.ID.IsNil() {
			e.ID = id.NewEventID()
		}
		if e.ProducedAt.IsZero() {
			e.ProducedAt = time.Now().UTC()
		}
	}
	return nil
}
