// Package observability provides a metrics extension for the ledger that
// records event and workflow counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/assetledger/account"
	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/plugin"
	"github.com/xraph/assetledger/transfer"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnEventsAppended    = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated    = (*MetricsExtension)(nil)
	_ plugin.OnAccountFrozen     = (*MetricsExtension)(nil)
	_ plugin.OnAccountUnfrozen   = (*MetricsExtension)(nil)
	_ plugin.OnAccountDeleted    = (*MetricsExtension)(nil)
	_ plugin.OnBalanceChanged    = (*MetricsExtension)(nil)
	_ plugin.OnLimitHit          = (*MetricsExtension)(nil)
	_ plugin.OnThresholdReached  = (*MetricsExtension)(nil)
	_ plugin.OnTransferRecorded  = (*MetricsExtension)(nil)
	_ plugin.OnWorkflowCompleted = (*MetricsExtension)(nil)
	_ plugin.OnWorkflowFailed    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a ledger plugin to track them automatically.
type MetricsExtension struct {
	factory MetricFactory

	// Event log metrics
	EventsAppended Counter
	AppendBatch    Histogram

	// Account metrics
	AccountCreated  Counter
	AccountFrozen   Counter
	AccountUnfrozen Counter
	AccountDeleted  Counter

	// Balance metrics
	Credits          Counter
	Debits           Counter
	CreditedAmount   Counter
	DebitedAmount    Counter
	LimitHits        Counter
	ThresholdReached Counter

	// Transfer metrics
	TransfersRecorded Counter
	TransferAmount    Histogram

	// Workflow metrics
	WorkflowCompleted  Counter
	WorkflowFailed     Counter
	CompensationFailed Counter
	WorkflowDuration   Histogram
}

// NewMetricsExtension creates a MetricsExtension using the provided factory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		EventsAppended: factory.Counter("ledger.events.appended"),
		AppendBatch:    factory.Histogram("ledger.events.batch_size"),

		AccountCreated:  factory.Counter("ledger.account.created"),
		AccountFrozen:   factory.Counter("ledger.account.frozen"),
		AccountUnfrozen: factory.Counter("ledger.account.unfrozen"),
		AccountDeleted:  factory.Counter("ledger.account.deleted"),

		Credits:          factory.Counter("ledger.balance.credits"),
		Debits:           factory.Counter("ledger.balance.debits"),
		CreditedAmount:   factory.Counter("ledger.balance.credited_amount"),
		DebitedAmount:    factory.Counter("ledger.balance.debited_amount"),
		LimitHits:        factory.Counter("ledger.balance.limit_hits"),
		ThresholdReached: factory.Counter("ledger.balance.threshold_reached"),

		TransfersRecorded: factory.Counter("ledger.transfer.recorded"),
		TransferAmount:    factory.Histogram("ledger.transfer.amount"),

		WorkflowCompleted:  factory.Counter("ledger.workflow.completed"),
		WorkflowFailed:     factory.Counter("ledger.workflow.failed"),
		CompensationFailed: factory.Counter("ledger.workflow.compensation_failed"),
		WorkflowDuration:   factory.Histogram("ledger.workflow.duration_seconds"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnEventsAppended implements plugin.OnEventsAppended.
func (m *MetricsExtension) OnEventsAppended(_ context.Context, _ event.Stream, events []*event.Event) error {
	m.EventsAppended.Add(float64(len(events)))
	m.AppendBatch.Observe(float64(len(events)))
	return nil
}

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *account.Account) error {
	m.AccountCreated.Inc()
	return nil
}

// OnAccountFrozen implements plugin.OnAccountFrozen.
func (m *MetricsExtension) OnAccountFrozen(_ context.Context, _ *account.Account) error {
	m.AccountFrozen.Inc()
	return nil
}

// OnAccountUnfrozen implements plugin.OnAccountUnfrozen.
func (m *MetricsExtension) OnAccountUnfrozen(_ context.Context, _ *account.Account) error {
	m.AccountUnfrozen.Inc()
	return nil
}

// OnAccountDeleted implements plugin.OnAccountDeleted.
func (m *MetricsExtension) OnAccountDeleted(_ context.Context, _ *account.Account) error {
	m.AccountDeleted.Inc()
	return nil
}

// OnBalanceChanged implements plugin.OnBalanceChanged.
func (m *MetricsExtension) OnBalanceChanged(_ context.Context, _, _ string, delta, _ int64) error {
	if delta >= 0 {
		m.Credits.Inc()
		m.CreditedAmount.Add(float64(delta))
		return nil
	}
	m.Debits.Inc()
	m.DebitedAmount.Add(float64(-delta))
	return nil
}

// OnLimitHit implements plugin.OnLimitHit.
func (m *MetricsExtension) OnLimitHit(_ context.Context, _, _ string, _, _ int64) error {
	m.LimitHits.Inc()
	return nil
}

// OnThresholdReached implements plugin.OnThresholdReached.
func (m *MetricsExtension) OnThresholdReached(_ context.Context, _ event.Stream, _ int) error {
	m.ThresholdReached.Inc()
	return nil
}

// OnTransferRecorded implements plugin.OnTransferRecorded.
func (m *MetricsExtension) OnTransferRecorded(_ context.Context, rec *transfer.Record) error {
	m.TransfersRecorded.Inc()
	m.TransferAmount.Observe(float64(rec.Amount))
	return nil
}

// OnWorkflowCompleted implements plugin.OnWorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(_ context.Context, _, _ string, elapsed time.Duration) error {
	m.WorkflowCompleted.Inc()
	m.WorkflowDuration.Observe(elapsed.Seconds())
	return nil
}

// OnWorkflowFailed implements plugin.OnWorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(_ context.Context, _, _ string, _, compensationErr error) error {
	m.WorkflowFailed.Inc()
	if compensationErr != nil {
		m.CompensationFailed.Inc()
	}
	return nil
}
