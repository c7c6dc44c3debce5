package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Base
	applied []Type
}

func (c *counter) Stream() Stream { return BalanceStream("A") }

func (c *counter) Apply(e *Event) error {
	c.applied = append(c.applied, e.Type)
	return nil
}

func mustNew(t *testing.T, s Stream, p Payload) *Event {
	t.Helper()
	e, err := New(s, p)
	require.NoError(t, err)
	return e
}

func TestNewAndDecode(t *testing.T) {
	e := mustNew(t, BalanceStream("A"), MoneyAdded{Asset: "USD", Amount: 100, Reference: "r1"})

	assert.Equal(t, TypeMoneyAdded, e.Type)
	assert.Equal(t, BalanceStream("A"), e.Stream())
	assert.True(t, e.Chained())
	assert.JSONEq(t, `{"asset":"USD","amount":100,"reference":"r1"}`, string(e.Payload))

	p, err := e.Decode()
	require.NoError(t, err)
	assert.Equal(t, MoneyAdded{Asset: "USD", Amount: 100, Reference: "r1"}, p)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode("bogus", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestChainedTypes(t *testing.T) {
	assert.True(t, IsBalanceAffecting(TypeMoneySubtracted))
	assert.True(t, IsBalanceAffecting(TypeAssetTransferred))
	assert.False(t, IsBalanceAffecting(TypeAccountLimitHit))
	assert.False(t, IsBalanceAffecting(TypeThresholdReached))
	assert.False(t, IsBalanceAffecting(TypeAccountCreated))
}

func TestBaseTrackAndCommit(t *testing.T) {
	c := &counter{}
	e1 := mustNew(t, c.Stream(), MoneyAdded{Asset: "USD", Amount: 1})
	e2 := mustNew(t, c.Stream(), MoneyAdded{Asset: "USD", Amount: 2})

	c.Track(e1)
	c.Track(e2)
	assert.Equal(t, int64(1), e1.Sequence)
	assert.Equal(t, int64(2), e2.Sequence)
	assert.Len(t, c.Uncommitted(), 2)
	assert.Zero(t, c.Version())

	c.MarkCommitted()
	assert.Equal(t, int64(2), c.Version())
	assert.Empty(t, c.Uncommitted())
}

func TestReplayRejectsGaps(t *testing.T) {
	e1 := mustNew(t, BalanceStream("A"), MoneyAdded{Asset: "USD", Amount: 1})
	e3 := mustNew(t, BalanceStream("A"), MoneyAdded{Asset: "USD", Amount: 3})
	e1.Sequence, e3.Sequence = 1, 3

	c := &counter{}
	err := Replay(c, []*Event{e1, e3})
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Version())
	assert.Len(t, c.applied, 1)
}

func TestPrepare(t *testing.T) {
	s := BalanceStream("A")
	events := []*Event{
		mustNew(t, s, MoneyAdded{Asset: "USD", Amount: 1}),
		{Type: TypeMoneyAdded, Payload: []byte(`{}`)},
	}

	require.NoError(t, Prepare(s, 4, events))
	assert.Equal(t, int64(5), events[0].Sequence)
	assert.Equal(t, int64(6), events[1].Sequence)
	assert.Equal(t, s, events[1].Stream())
	assert.False(t, events[1].ID.IsNil())
	assert.False(t, events[1].ProducedAt.IsZero())

	foreign := []*Event{mustNew(t, BalanceStream("B"), MoneyAdded{Asset: "USD", Amount: 1})}
	assert.ErrorIs(t, Prepare(s, 0, foreign), ErrForeignEvent)
}

func TestConflictErrorMatchesSentinel(t *testing.T) {
	var err error = &ConflictError{Stream: BalanceStream("A"), Expected: 1, Actual: 2}
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
	assert.Contains(t, err.Error(), "balance/A")
}
