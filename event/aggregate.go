package event

import "fmt"

// Aggregate is a consistency boundary rebuilt from its own stream.
type Aggregate interface {
	Stream() Stream
	Version() int64
	Uncommitted() []*Event
	MarkCommitted()
	Restore(version int64)
	Apply(e *Event) error
}

// Base tracks the committed version and pending events of an aggregate.
// Embed it and implement Stream and Apply.
type Base struct {
	version     int64
	uncommitted []*Event
}

// Version returns the sequence of the last committed event.
func (b *Base) Version() int64 { return b.version }

// Uncommitted returns the events recorded since the last commit.
func (b *Base) Uncommitted() []*Event { return b.uncommitted }

// MarkCommitted moves pending events into the committed version.
func (b *Base) MarkCommitted() {
	b.version += int64(len(b.uncommitted))
	b.uncommitted = nil
}

// Restore sets the committed version, used by replay and snapshots.
func (b *Base) Restore(version int64) { b.version = version }

// Track queues e as pending. Its tentative sequence follows the pending tail.
func (b *Base) Track(e *Event) {
	e.Sequence = b.version + int64(len(b.uncommitted)) + 1
	b.uncommitted = append(b.uncommitted, e)
}

// Replay folds events into agg in order and checks that they are gapless.
func Replay(agg Aggregate, events []*Event) error {
	for _, e := range events {
		if want := agg.Version() + 1; e.Sequence != want {
			return fmt.Errorf("event: %s: expected sequence %d, got %d", agg.Stream(), want, e.Sequence)
		}
		if err := agg.Apply(e); err != nil {
			return err
		}
		agg.Restore(e.Sequence)
	}
	return nil
}
