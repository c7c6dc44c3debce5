package balance_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger/balance"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/hashchain"
	"github.com/xraph/assetledger/threshold"
	"github.com/xraph/assetledger/types"
)

// commit replays the aggregate's pending events into a fresh aggregate, the
// way a load from the store would.
func commit(t *testing.T, a *balance.Aggregate, history []*event.Event) []*event.Event {
	t.Helper()
	history = append(history, a.Uncommitted()...)
	a.MarkCommitted()
	return history
}

func countType(events []*event.Event, typ event.Type) int {
	n := 0
	for _, e := range events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestCreditAndDebitScenario(t *testing.T) {
	a := balance.New("A", 0)

	require.NoError(t, a.Credit("USD", 10000, ""))
	require.NoError(t, a.Debit("USD", 3000, ""))
	assert.Equal(t, int64(7000), a.Balance("USD"))

	pending := a.Uncommitted()
	require.Len(t, pending, 2)
	debit := pending[1]
	assert.Equal(t, event.TypeMoneySubtracted, debit.Type)
	assert.Equal(t, pending[0].Hash, debit.PrevHash)
	assert.Equal(t, hashchain.Compute(pending[0].Hash, debit.Payload), debit.Hash)
	a.MarkCommitted()

	err := a.Debit("USD", 8000, "")
	require.ErrorIs(t, err, balance.ErrInsufficientFunds)

	var fundsErr *balance.InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, "A", fundsErr.AccountID)
	assert.Equal(t, int64(8000), fundsErr.Requested)
	assert.Equal(t, int64(7000), fundsErr.Available)

	assert.Equal(t, int64(7000), a.Balance("USD"))
	require.Len(t, a.Uncommitted(), 1)
	limitHit := a.Uncommitted()[0]
	assert.Equal(t, event.TypeAccountLimitHit, limitHit.Type)
	assert.Empty(t, limitHit.Hash)
}

func TestValidationRejectsBeforeRecording(t *testing.T) {
	a := balance.New("A", 0)

	for _, amount := range []int64{0, -10} {
		var verr types.ValidationError
		assert.ErrorAs(t, a.Credit("USD", amount, ""), &verr)
		assert.ErrorAs(t, a.Debit("USD", amount, ""), &verr)
	}
	assert.Empty(t, a.Uncommitted())
}

func TestUnseenAssetIsZero(t *testing.T) {
	a := balance.New("A", 0)
	require.NoError(t, a.Credit("usd", 5, ""))
	assert.Equal(t, int64(5), a.Balance("USD"))
	assert.Equal(t, int64(0), a.Balance("BTC"))
	assert.Equal(t, map[string]int64{"USD": 5}, a.Balances())
}

func TestReferenceMakesCommandIdempotent(t *testing.T) {
	a := balance.New("A", 0)

	require.NoError(t, a.Credit("USD", 100, "wf-1:credit"))
	require.NoError(t, a.Credit("USD", 100, "wf-1:credit"))
	assert.Equal(t, int64(100), a.Balance("USD"))
	assert.Len(t, a.Uncommitted(), 1)

	require.NoError(t, a.Debit("USD", 40, "wf-1:undo"))
	require.NoError(t, a.Debit("USD", 40, "wf-1:undo"))
	assert.Equal(t, int64(60), a.Balance("USD"))
	assert.True(t, a.HasReference("wf-1:undo"))
}

func TestReferenceReuseWithDifferentCommand(t *testing.T) {
	a := balance.New("A", 0)
	require.NoError(t, a.Credit("USD", 100, "r1"))
	a.MarkCommitted()

	tests := []struct {
		name string
		run  func() error
	}{
		{"other asset", func() error { return a.Debit("EUR", 999, "r1") }},
		{"other amount", func() error { return a.Credit("USD", 101, "r1") }},
		{"other direction", func() error { return a.Debit("USD", 100, "r1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), balance.ErrReferenceConflict)
			assert.Empty(t, a.Uncommitted())
		})
	}

	require.NoError(t, a.Credit("usd", 100, "r1"))
	assert.Equal(t, int64(100), a.Balance("USD"))
}

func TestCreditRejectsOverflow(t *testing.T) {
	a := balance.New("A", 0)
	require.NoError(t, a.Credit("USD", math.MaxInt64, ""))
	a.MarkCommitted()

	err := a.Credit("USD", 1, "")
	require.ErrorIs(t, err, balance.ErrBalanceOverflow)
	assert.Empty(t, a.Uncommitted())
	assert.Equal(t, int64(math.MaxInt64), a.Balance("USD"))

	// Other assets are unaffected.
	require.NoError(t, a.Credit("EUR", 1, ""))
}

func TestReplayRejectsOverflowingStream(t *testing.T) {
	stream := event.BalanceStream("A")
	prev := hashchain.SeedHash
	var history []*event.Event
	for i, amount := range []int64{math.MaxInt64, 1} {
		e, err := event.New(stream, event.MoneyAdded{Asset: "USD", Amount: amount})
		require.NoError(t, err)
		e.Sequence = int64(i + 1)
		prev = hashchain.Link(e, prev)
		history = append(history, e)
	}

	err := event.Replay(balance.New("A", 0), history)
	assert.ErrorIs(t, err, balance.ErrNegativeBalance)
}

func TestThresholdDeterminism(t *testing.T) {
	a := balance.New("A", threshold.DefaultLimit)
	require.NoError(t, a.Credit("USD", 1000000, ""))

	var history []*event.Event
	for i := 1; i < threshold.DefaultLimit; i++ {
		if i%2 == 0 {
			require.NoError(t, a.Debit("USD", 1, ""))
		} else {
			require.NoError(t, a.Credit("USD", 1, ""))
		}
	}
	history = commit(t, a, history)

	require.Equal(t, 1, countType(history, event.TypeThresholdReached))
	last := history[len(history)-1]
	assert.Equal(t, event.TypeThresholdReached, last.Type)
	assert.Equal(t, threshold.DefaultLimit, countType(history, event.TypeMoneyAdded)+countType(history, event.TypeMoneySubtracted))
	assert.Equal(t, 0, a.ThresholdCount())

	// The 1001st operation starts a fresh count.
	require.NoError(t, a.Credit("USD", 1, ""))
	history = commit(t, a, history)
	assert.Equal(t, 1, countType(history, event.TypeThresholdReached))
	assert.Equal(t, 1, a.ThresholdCount())

	replayed := balance.New("A", threshold.DefaultLimit)
	require.NoError(t, event.Replay(replayed, history))
	assert.Equal(t, a.Balances(), replayed.Balances())
	assert.Equal(t, a.LastHash(), replayed.LastHash())
	assert.Equal(t, 1, replayed.ThresholdCount())
}

func TestSmallThresholdLimit(t *testing.T) {
	a := balance.New("A", 2)
	require.NoError(t, a.Credit("USD", 10, ""))
	require.NoError(t, a.Credit("USD", 10, ""))

	pending := a.Uncommitted()
	require.Len(t, pending, 3)
	assert.Equal(t, event.TypeThresholdReached, pending[2].Type)

	p, err := pending[2].Decode()
	require.NoError(t, err)
	assert.Equal(t, event.ThresholdReached{Limit: 2}, p)
}

func TestReplayDetectsTamper(t *testing.T) {
	a := balance.New("A", 0)
	require.NoError(t, a.Credit("USD", 100, ""))
	require.NoError(t, a.Credit("USD", 50, ""))
	history := commit(t, a, nil)

	tampered, err := json.Marshal(event.MoneyAdded{Asset: "USD", Amount: 5000})
	require.NoError(t, err)
	history[0].Payload = tampered

	err = event.Replay(balance.New("A", 0), history)
	assert.ErrorIs(t, err, hashchain.ErrInvalidHash)
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := balance.New("A", 5)
	require.NoError(t, a.Credit("USD", 100, "r1"))
	require.NoError(t, a.Credit("BTC", 7, ""))
	a.MarkCommitted()

	snap := a.Snapshot()
	restored := balance.FromSnapshot(snap, 5)

	assert.Equal(t, a.Version(), restored.Version())
	assert.Equal(t, a.Balances(), restored.Balances())
	assert.Equal(t, a.LastHash(), restored.LastHash())
	assert.Equal(t, 2, restored.ThresholdCount())
	assert.True(t, restored.HasReference("r1"))
	require.NoError(t, restored.Credit("USD", 100, "r1"))
	assert.ErrorIs(t, restored.Credit("USD", 5, "r1"), balance.ErrReferenceConflict)

	require.NoError(t, restored.Debit("USD", 10, ""))
	assert.Equal(t, restored.Uncommitted()[0].PrevHash, a.LastHash())
}
