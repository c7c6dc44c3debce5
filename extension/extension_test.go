package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/snapshot"
	"github.com/xraph/assetledger/store/memory"
)

type countingStore struct {
	*memory.Store
	migrations int
}

func (s *countingStore) Migrate(ctx context.Context) error {
	s.migrations++
	return s.Store.Migrate(ctx)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{ThresholdLimit: 10})

	assert.Equal(t, 10, cfg.ThresholdLimit)
	assert.Equal(t, 5, cfg.MaxAppendRetries)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
	assert.Equal(t, 100, cfg.SnapshotInterval)
	assert.Equal(t, 5*time.Second, cfg.PluginTimeout)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{ThresholdLimit: 50}
	programmatic := Config{
		ThresholdLimit:       10,
		StepTimeout:          time.Second,
		DisableMigrate:       true,
		ParallelCompensation: true,
	}

	cfg := mergeConfigurations(yaml, programmatic)

	assert.Equal(t, 50, cfg.ThresholdLimit, "yaml wins")
	assert.Equal(t, time.Second, cfg.StepTimeout, "programmatic fills gaps")
	assert.True(t, cfg.DisableMigrate)
	assert.True(t, cfg.ParallelCompensation)
	assert.Equal(t, 5, cfg.MaxAppendRetries)
}

func TestOptionsSetConfig(t *testing.T) {
	e := New(
		WithThresholdLimit(3),
		WithMaxAppendRetries(2),
		WithStepTimeout(time.Second),
		WithSnapshotInterval(7),
		WithParallelCompensation(),
		WithContinueOnCompensationError(),
		WithDisableMigrate(),
		WithRequireConfig(true),
	)

	assert.Equal(t, Config{
		ThresholdLimit:              3,
		MaxAppendRetries:            2,
		StepTimeout:                 time.Second,
		SnapshotInterval:            7,
		ParallelCompensation:        true,
		ContinueOnCompensationError: true,
		DisableMigrate:              true,
		RequireConfig:               true,
	}, e.config)
	assert.Nil(t, e.Engine())
}

func TestBuildLedgerOptsDrivesEngine(t *testing.T) {
	cfg := mergeWithDefaults(Config{ThresholdLimit: 2})
	opts := buildLedgerOpts(cfg, snapshot.NewMemory(), nil)

	l := assetledger.New(memory.New(), opts...)
	ctx := context.Background()
	require.NoError(t, l.Start(ctx))
	defer l.Stop()

	_, err := l.CreateAccount(ctx, "A", "alice", nil)
	require.NoError(t, err)
	for range 2 {
		_, err = l.Credit(ctx, "A", "USD", 10)
		require.NoError(t, err)
	}

	events, err := l.GetEventStream(ctx, assetledger.BalanceStream("A"))
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, event.TypeThresholdReached, events[2].Type)
}

func TestDisableMigrateStillRecoversWorkflows(t *testing.T) {
	ctx := context.Background()
	s := &countingStore{Store: memory.New()}
	require.NoError(t, s.SaveWorkflow(ctx, &saga.Workflow{
		ID:     "wf-interrupted",
		Kind:   "transfer",
		Status: saga.StatusRunning,
	}))

	e := New(WithStore(s), WithDisableMigrate())
	e.config = mergeWithDefaults(e.config)
	e.buildEngine()

	require.NoError(t, e.Start(ctx))
	assert.Zero(t, s.migrations)

	status, err := e.Engine().GetWorkflowStatus(ctx, "wf-interrupted")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, status)

	require.NoError(t, e.Stop(ctx))
}
