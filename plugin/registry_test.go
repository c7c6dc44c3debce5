package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/plugin"
	"github.com/xraph/assetledger/types"
)

type recorder struct {
	name string

	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
	if r.fail {
		return errors.New("plugin failure")
	}
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnAccountCreated(_ context.Context, acct *account.Account) error {
	return r.record("created:" + acct.ID)
}

func (r *recorder) OnBalanceChanged(_ context.Context, accountID, asset string, delta, _ int64) error {
	if delta < 0 {
		return r.record("debit:" + accountID + ":" + asset)
	}
	return r.record("credit:" + accountID + ":" + asset)
}

func (r *recorder) OnThresholdReached(_ context.Context, stream event.Stream, _ int) error {
	return r.record("threshold:" + stream.String())
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnAccountCreated(ctx context.Context, _ *account.Account) error {
	select {
	case <-time.After(time.Second):
	case <-ctx.Done():
	}
	return nil
}

type assets struct{}

func (assets) Name() string { return "assets" }

func (assets) Assets() []types.Asset {
	return []types.Asset{{Code: "PTS", Name: "Points", Precision: 0}}
}

func TestRegisterAndDispatch(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry()
	rec := &recorder{name: "rec"}
	require.NoError(t, r.Register(rec))

	r.EmitAccountCreated(ctx, &account.Account{ID: "acct-1"})
	r.EmitBalanceChanged(ctx, "acct-1", "USD", 100, 100)
	r.EmitBalanceChanged(ctx, "acct-1", "USD", -50, 50)
	r.EmitThresholdReached(ctx, event.BalanceStream("acct-1"), 1000)
	r.EmitAccountFrozen(ctx, &account.Account{ID: "acct-1"})

	assert.Equal(t, []string{
		"created:acct-1",
		"credit:acct-1:USD",
		"debit:acct-1:USD",
		"threshold:balance/acct-1",
	}, rec.seen())
	assert.Equal(t, 1, r.Count())
	assert.Same(t, rec, r.Get("rec"))
	assert.Nil(t, r.Get("missing"))
}

func TestDuplicateRegistration(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(&recorder{name: "rec"}))
	assert.Error(t, r.Register(&recorder{name: "rec"}))
	assert.Len(t, r.List(), 1)
}

func TestPluginErrorsAreSwallowed(t *testing.T) {
	r := plugin.NewRegistry()
	failing := &recorder{name: "failing", fail: true}
	ok := &recorder{name: "ok"}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(ok))

	r.EmitAccountCreated(context.Background(), &account.Account{ID: "acct-1"})

	assert.Len(t, failing.seen(), 1)
	assert.Len(t, ok.seen(), 1)
}

func TestSlowPluginTimesOut(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(20 * time.Millisecond)
	require.NoError(t, r.Register(slow{}))

	start := time.Now()
	r.EmitAccountCreated(context.Background(), &account.Account{ID: "acct-1"})
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAssetProviders(t *testing.T) {
	r := plugin.NewRegistry()
	require.NoError(t, r.Register(assets{}))
	require.NoError(t, r.Register(&recorder{name: "rec"}))

	providers := r.AssetProviders()
	require.Len(t, providers, 1)
	assert.Equal(t, "PTS", providers[0].Assets()[0].Code)
}
