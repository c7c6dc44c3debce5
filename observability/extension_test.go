package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/observability"
	"github.com/xraph/assetledger/transfer"
)

func value(m any) float64 {
	return testutil.ToFloat64(m.(prometheus.Collector))
}

func TestMetricName(t *testing.T) {
	assert.Equal(t, "balance_limit_hits", observability.MetricName("ledger.balance.limit_hits"))
	assert.Equal(t, "workflow_duration_seconds", observability.MetricName("ledger.workflow.duration_seconds"))
	assert.Equal(t, "custom_metric", observability.MetricName("custom-metric"))
}

func TestMetricsExtensionWithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	ext := observability.NewMetricsExtension(observability.NewPrometheusFactory("assetledger", reg))
	ctx := context.Background()

	require.NoError(t, ext.OnBalanceChanged(ctx, "A", "USD", 10000, 10000))
	require.NoError(t, ext.OnBalanceChanged(ctx, "A", "USD", -3000, 7000))
	require.NoError(t, ext.OnLimitHit(ctx, "A", "USD", 8000, 7000))
	require.NoError(t, ext.OnEventsAppended(ctx, event.BalanceStream("A"), make([]*event.Event, 3)))
	require.NoError(t, ext.OnTransferRecorded(ctx, &transfer.Record{Amount: 5000}))
	require.NoError(t, ext.OnWorkflowCompleted(ctx, "wf-1", "transfer", 20*time.Millisecond))
	require.NoError(t, ext.OnWorkflowFailed(ctx, "wf-2", "transfer", errors.New("frozen"), errors.New("undo failed")))

	assert.InDelta(t, 1, value(ext.Credits), 0)
	assert.InDelta(t, 1, value(ext.Debits), 0)
	assert.InDelta(t, 10000, value(ext.CreditedAmount), 0)
	assert.InDelta(t, 3000, value(ext.DebitedAmount), 0)
	assert.InDelta(t, 1, value(ext.LimitHits), 0)
	assert.InDelta(t, 3, value(ext.EventsAppended), 0)
	assert.InDelta(t, 1, value(ext.TransfersRecorded), 0)
	assert.InDelta(t, 1, value(ext.WorkflowCompleted), 0)
	assert.InDelta(t, 1, value(ext.CompensationFailed), 0)

	n, err := testutil.GatherAndCount(reg, "assetledger_balance_limit_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory("assetledger", reg)
	b := observability.NewPrometheusFactory("assetledger", reg)

	a.Counter("ledger.account.created").Inc()
	b.Counter("ledger.account.created").Inc()

	assert.InDelta(t, 2, value(a.Counter("ledger.account.created")), 0)
}
