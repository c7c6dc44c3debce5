package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/types"
)

func created(t *testing.T) *account.Aggregate {
	t.Helper()
	a := account.New("acct-1")
	require.NoError(t, a.Create("alice", map[string]string{"tier": "gold"}))
	return a
}

func TestCreate(t *testing.T) {
	a := created(t)

	acct := a.Account()
	assert.Equal(t, account.StateActive, acct.State)
	assert.Equal(t, "alice", acct.Owner)
	assert.Equal(t, "gold", acct.Metadata["tier"])
	require.Len(t, a.Uncommitted(), 1)
	assert.Equal(t, event.TypeAccountCreated, a.Uncommitted()[0].Type)
	assert.Empty(t, a.Uncommitted()[0].Hash, "lifecycle events are not chained")
}

func TestCreateTwiceFails(t *testing.T) {
	a := created(t)
	assert.ErrorIs(t, a.Create("bob", nil), account.ErrAccountExists)
}

func TestCreateRequiresOwner(t *testing.T) {
	err := account.New("acct-1").Create("", nil)
	var verr types.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFreezeUnfreeze(t *testing.T) {
	a := created(t)

	require.NoError(t, a.Freeze("kyc", "ops"))
	assert.Equal(t, account.StateFrozen, a.State())
	assert.ErrorIs(t, a.CanTransact(), account.ErrAccountFrozen)
	assert.Equal(t, "kyc", a.Account().FrozenReason)

	// No-op when already frozen.
	require.NoError(t, a.Freeze("again", "ops"))
	assert.Len(t, a.Uncommitted(), 2)

	require.NoError(t, a.Unfreeze("cleared", "ops"))
	assert.Equal(t, account.StateActive, a.State())
	assert.NoError(t, a.CanTransact())

	// No-op when already active.
	require.NoError(t, a.Unfreeze("again", "ops"))
	assert.Len(t, a.Uncommitted(), 3)
}

func TestCommandsOnMissingAccount(t *testing.T) {
	a := account.New("ghost")
	assert.ErrorIs(t, a.Freeze("r", "x"), account.ErrAccountNotFound)
	assert.ErrorIs(t, a.Unfreeze("r", "x"), account.ErrAccountNotFound)
	assert.ErrorIs(t, a.Delete("x"), account.ErrAccountNotFound)
	assert.ErrorIs(t, a.CanTransact(), account.ErrAccountNotFound)
}

func TestDeleteIsTerminal(t *testing.T) {
	a := created(t)
	require.NoError(t, a.Freeze("r", "x"))
	require.NoError(t, a.Delete("x"))

	assert.Equal(t, account.StateDeleted, a.State())
	assert.ErrorIs(t, a.Delete("x"), account.ErrAccountDeleted)
	assert.ErrorIs(t, a.Freeze("r", "x"), account.ErrAccountDeleted)
	assert.ErrorIs(t, a.Unfreeze("r", "x"), account.ErrAccountDeleted)
	assert.ErrorIs(t, a.CanTransact(), account.ErrAccountDeleted)
}

func TestReplayRebuildsState(t *testing.T) {
	a := created(t)
	require.NoError(t, a.Freeze("kyc", "ops"))
	events := a.Uncommitted()

	replayed := account.New("acct-1")
	require.NoError(t, event.Replay(replayed, events))

	assert.Equal(t, int64(2), replayed.Version())
	assert.Equal(t, account.StateFrozen, replayed.State())
	assert.Equal(t, a.Account().CreatedAt, replayed.Account().CreatedAt)
}
