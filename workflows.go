package assetledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/assetledger/event"
	"github.com/xraph/assetledger/id"
	"github.com/xraph/assetledger/saga"
	"github.com/xraph/assetledger/transfer"
	"github.com/xraph/assetledger/types"
)

// Workflow kinds.
const (
	KindTransfer     = "transfer"
	KindBulkTransfer = "bulk_transfer"
	KindBatch        = "batch"
)

// Compensation kinds handled by the ledger.
const (
	compensateCredit   = "balance.credit"
	compensateDebit    = "balance.debit"
	compensateFreeze   = "account.freeze"
	compensateUnfreeze = "account.unfreeze"
)

// Transfer step names.
const (
	stepDebitSource       = "debit_source"
	stepCreditDestination = "credit_destination"
	stepRecordTransfer    = "record_transfer"
)

// TransferSpec describes one transfer.
type TransferSpec struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Asset    string            `json:"asset"`
	Amount   int64             `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// TransferResult is the outcome of one transfer workflow.
type TransferResult struct {
	TransferID string
	// Record is set when the workflow completed.
	Record   *transfer.Record
	Workflow saga.Result
}

// BulkResult is the outcome of a bulk transfer.
type BulkResult struct {
	Workflow saga.Result
	// Transfers holds the transfers that were started, in order.
	Transfers []*TransferResult
}

// OperationKind names a batch operation.
type OperationKind string

const (
	OpCredit   OperationKind = "credit"
	OpDebit    OperationKind = "debit"
	OpTransfer OperationKind = "transfer"
	OpFreeze   OperationKind = "freeze"
	OpUnfreeze OperationKind = "unfreeze"
)

// Operation is one entry of a batch. For transfers AccountID is the source
// and To the destination.
type Operation struct {
	Kind      OperationKind     `json:"kind"`
	AccountID string            `json:"account_id"`
	To        string            `json:"to,omitempty"`
	Asset     string            `json:"asset,omitempty"`
	Amount    int64             `json:"amount,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// transferInput is persisted as the input of a transfer workflow.
type transferInput struct {
	TransferID string `json:"transfer_id"`
	TransferSpec
}

// lifecycleChange is the payload of the freeze and unfreeze compensations.
type lifecycleChange struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	Actor     string `json:"actor,omitempty"`
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

// Transfer moves amount of asset between two accounts as a workflow:
// debit the source, credit the destination, record the transfer. When a step
// fails the completed ones are compensated and the returned error carries
// the cause. The result is returned in both cases.
func (l *Ledger) Transfer(ctx context.Context, from, to, asset string, amount int64, metadata map[string]string) (*TransferResult, error) {
	spec := TransferSpec{From: from, To: to, Asset: asset, Amount: amount, Metadata: metadata}
	if err := l.validateTransfer("", spec); err != nil {
		return nil, err
	}

	res := l.runTransfer(ctx, spec, "", id.NewWorkflowID().String())
	return res, res.Workflow.Error()
}

// BulkTransfer runs every transfer as a child workflow of one parent. The
// first failing transfer stops the bulk; only the transfers that completed
// before it are compensated.
func (l *Ledger) BulkTransfer(ctx context.Context, specs []TransferSpec) (*BulkResult, error) {
	if len(specs) == 0 {
		return nil, types.ValidationError{Field: "transfers", Message: "at least one transfer is required"}
	}
	var verr MultiError
	for i, spec := range specs {
		verr.Add(l.validateTransfer(fmt.Sprintf("transfers[%d].", i), spec))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	parentID := id.NewWorkflowID().String()
	out := &BulkResult{}

	b := saga.New(KindBulkTransfer).
		WithID(parentID).
		WithInput(specs).
		ParallelCompensation(l.parallelCompensation).
		ContinueWithError(l.continueWithError)

	for i, spec := range specs {
		child, err := l.childStep(fmt.Sprintf("transfer_%d", i+1), func(ctx context.Context, childID string) error {
			tr := l.runTransfer(ctx, spec, parentID, childID)
			out.Transfers = append(out.Transfers, tr)
			return tr.Workflow.Error()
		})
		if err != nil {
			return nil, err
		}
		b.Add(child)
	}

	s, err := b.Build()
	if err != nil {
		return nil, err
	}

	out.Workflow = l.runSaga(ctx, s)
	return out, out.Workflow.Error()
}

// runTransfer executes one transfer workflow with a fixed workflow id.
func (l *Ledger) runTransfer(ctx context.Context, spec TransferSpec, parentID, workflowID string) *TransferResult {
	spec.Asset = types.NormalizeAssetCode(spec.Asset)
	res := &TransferResult{TransferID: id.NewTransferID().String()}

	debitRef := workflowID + ":" + stepDebitSource
	creditRef := workflowID + ":" + stepCreditDestination
	debit := adjustment{AccountID: spec.From, Asset: spec.Asset, Amount: spec.Amount, Reference: debitRef}
	credit := adjustment{AccountID: spec.To, Asset: spec.Asset, Amount: spec.Amount, Reference: creditRef}

	undoDebit, err := undo(compensateCredit, debit)
	if err != nil {
		res.Workflow = saga.Result{WorkflowID: workflowID, Status: saga.StatusFailed, Err: err}
		return res
	}
	undoCredit, err := undo(compensateDebit, credit)
	if err != nil {
		res.Workflow = saga.Result{WorkflowID: workflowID, Status: saga.StatusFailed, Err: err}
		return res
	}

	s, err := saga.New(KindTransfer).
		WithID(workflowID).
		WithParent(parentID).
		WithInput(transferInput{TransferID: res.TransferID, TransferSpec: spec}).
		ParallelCompensation(l.parallelCompensation).
		ContinueWithError(l.continueWithError).
		StepTimeout(l.stepTimeout).
		StepWithRecovery(stepDebitSource, undoDebit, func(ctx context.Context) (*saga.Compensation, error) {
			if _, err := l.adjust(ctx, debit, true, true); err != nil {
				return nil, err
			}
			return undoDebit, nil
		}).
		StepWithRecovery(stepCreditDestination, undoCredit, func(ctx context.Context) (*saga.Compensation, error) {
			if _, err := l.adjust(ctx, credit, false, true); err != nil {
				return nil, err
			}
			return undoCredit, nil
		}).
		Step(stepRecordTransfer, func(ctx context.Context) (*saga.Compensation, error) {
			rec, err := l.recordTransfer(ctx, res.TransferID, spec, workflowID)
			if err != nil {
				return nil, err
			}
			res.Record = rec
			return nil, nil
		}).
		Build()
	if err != nil {
		res.Workflow = saga.Result{WorkflowID: workflowID, Status: saga.StatusFailed, Err: err}
		return res
	}

	res.Workflow = l.runSaga(ctx, s)
	if !res.Workflow.OK() {
		res.Record = nil
	}
	return res
}

// recordTransfer appends the transfer fact to the transfer aggregate.
func (l *Ledger) recordTransfer(ctx context.Context, transferID string, spec TransferSpec, workflowID string) (*transfer.Record, error) {
	stream := event.TransferStream(transferID)
	agg, events, err := execute(ctx, l, stream, func(ctx context.Context) (*transfer.Aggregate, error) {
		return l.loadTransfer(ctx, transferID)
	}, func(a *transfer.Aggregate) error {
		return a.Transfer(spec.From, spec.To, spec.Asset, spec.Amount, spec.Metadata, workflowID, workflowID)
	})
	if len(events) > 0 {
		l.publish(ctx, stream, events, nil)
	}
	if err != nil {
		return nil, err
	}

	records := agg.Records()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", transfer.ErrTransferNotFound, transferID)
	}
	rec := records[len(records)-1]
	if len(events) > 0 {
		l.plugins.EmitTransferRecorded(ctx, &rec)
	}
	return &rec, nil
}

func (l *Ledger) validateTransfer(prefix string, spec TransferSpec) error {
	if spec.From == "" {
		return types.ValidationError{Field: prefix + "from", Message: "source account is required"}
	}
	if spec.To == "" {
		return types.ValidationError{Field: prefix + "to", Message: "destination account is required"}
	}
	if err := l.assets.Validate(spec.Asset); err != nil {
		return err
	}
	if spec.Amount <= 0 {
		return types.ValidationError{Field: prefix + "amount", Message: "amount must be positive"}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Batches
// ──────────────────────────────────────────────────

// BatchProcess runs heterogeneous operations in order as one workflow. The
// whole batch is validated up front; a failing operation compensates the
// ones before it in reverse order.
func (l *Ledger) BatchProcess(ctx context.Context, ops []Operation) (saga.Result, error) {
	if len(ops) == 0 {
		err := types.ValidationError{Field: "operations", Message: "at least one operation is required"}
		return saga.Result{}, err
	}
	var verr MultiError
	for i, op := range ops {
		verr.Add(l.validateOperation(i, op))
	}
	if verr.HasErrors() {
		return saga.Result{}, verr
	}

	workflowID := id.NewWorkflowID().String()
	b := saga.New(KindBatch).
		WithID(workflowID).
		WithInput(ops).
		ParallelCompensation(l.parallelCompensation).
		ContinueWithError(l.continueWithError)

	for i, op := range ops {
		step, err := l.operationStep(workflowID, i, op)
		if err != nil {
			return saga.Result{}, err
		}
		b.Add(step)
	}

	s, err := b.Build()
	if err != nil {
		return saga.Result{}, err
	}

	res := l.runSaga(ctx, s)
	return res, res.Error()
}

func (l *Ledger) operationStep(workflowID string, i int, op Operation) (saga.Step, error) {
	name := fmt.Sprintf("%s_%d", op.Kind, i+1)
	ref := fmt.Sprintf("%s:op:%d", workflowID, i+1)

	switch op.Kind {
	case OpCredit, OpDebit:
		adj := adjustment{AccountID: op.AccountID, Asset: types.NormalizeAssetCode(op.Asset), Amount: op.Amount, Reference: ref}
		debit := op.Kind == OpDebit
		kind := compensateDebit
		if debit {
			kind = compensateCredit
		}
		comp, err := undo(kind, adj)
		if err != nil {
			return saga.Step{}, err
		}
		return saga.Step{
			Name:     name,
			Recovery: comp,
			Timeout:  l.stepTimeout,
			Action: func(ctx context.Context) (*saga.Compensation, error) {
				if _, err := l.adjust(ctx, adj, debit, true); err != nil {
					return nil, err
				}
				return comp, nil
			},
		}, nil

	case OpTransfer:
		spec := TransferSpec{From: op.AccountID, To: op.To, Asset: op.Asset, Amount: op.Amount, Metadata: op.Metadata}
		return l.childStep(name, func(ctx context.Context, childID string) error {
			return l.runTransfer(ctx, spec, workflowID, childID).Workflow.Error()
		})

	case OpFreeze, OpUnfreeze:
		freeze := op.Kind == OpFreeze
		return saga.Step{
			Name:    name,
			Timeout: l.stepTimeout,
			Action: func(ctx context.Context) (*saga.Compensation, error) {
				change := l.unfreeze
				kind := compensateFreeze
				if freeze {
					change = l.freeze
					kind = compensateUnfreeze
				}
				before, err := l.GetAccount(ctx, op.AccountID)
				if err != nil {
					return nil, err
				}
				_, changed, err := change(ctx, op.AccountID, op.Reason, op.Actor)
				if err != nil || !changed {
					return nil, err
				}
				return saga.NewCompensation(kind, lifecycleChange{
					AccountID: op.AccountID,
					Reason:    rollbackReason(before.FrozenReason, workflowID),
					Actor:     op.Actor,
				})
			},
		}, nil

	default:
		return saga.Step{}, types.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown operation %q", op.Kind)}
	}
}

func (l *Ledger) validateOperation(i int, op Operation) error {
	prefix := fmt.Sprintf("operations[%d].", i)
	if op.AccountID == "" {
		return types.ValidationError{Field: prefix + "account_id", Message: "account is required"}
	}

	switch op.Kind {
	case OpCredit, OpDebit:
		if err := l.assets.Validate(op.Asset); err != nil {
			return err
		}
		if op.Amount <= 0 {
			return types.ValidationError{Field: prefix + "amount", Message: "amount must be positive"}
		}
		return nil
	case OpTransfer:
		return l.validateTransfer(prefix, TransferSpec{From: op.AccountID, To: op.To, Asset: op.Asset, Amount: op.Amount})
	case OpFreeze, OpUnfreeze:
		return nil
	default:
		return types.ValidationError{Field: prefix + "kind", Message: fmt.Sprintf("unknown operation %q", op.Kind)}
	}
}

func rollbackReason(previous, workflowID string) string {
	if previous != "" {
		return previous
	}
	return "rollback of workflow " + workflowID
}

// ──────────────────────────────────────────────────
// Workflows
// ──────────────────────────────────────────────────

// GetWorkflowStatus returns the status of a workflow.
func (l *Ledger) GetWorkflowStatus(ctx context.Context, workflowID string) (saga.Status, error) {
	return l.sagas.Status(ctx, workflowID)
}

// GetWorkflow returns the persisted state of a workflow.
func (l *Ledger) GetWorkflow(ctx context.Context, workflowID string) (*saga.Workflow, error) {
	return l.sagas.Workflow(ctx, workflowID)
}

// CompensateWorkflow runs the outstanding compensations of a workflow. It
// retries compensations that failed earlier and rolls back a completed
// workflow. Calling it again after success is a no-op.
func (l *Ledger) CompensateWorkflow(ctx context.Context, workflowID string) (saga.Result, error) {
	before, err := l.sagas.Workflow(ctx, workflowID)
	if err != nil {
		return saga.Result{WorkflowID: workflowID}, err
	}
	res, err := l.sagas.Compensate(ctx, workflowID)
	if err != nil {
		return res, err
	}
	if !before.Compensated {
		l.emitFailed(ctx, res)
	}
	return res, nil
}

// Recover compensates every workflow left unfinished, typically by a crash.
func (l *Ledger) Recover(ctx context.Context) ([]saga.Result, error) {
	results, err := l.sagas.Recover(ctx)
	for _, res := range results {
		l.emitFailed(ctx, res)
	}
	return results, err
}

// runSaga runs s and reports the outcome to plugins.
func (l *Ledger) runSaga(ctx context.Context, s *saga.Saga) saga.Result {
	started := time.Now()
	res := l.sagas.Run(ctx, s)

	if res.OK() {
		l.plugins.EmitWorkflowCompleted(ctx, res.WorkflowID, s.Kind(), time.Since(started))
		return res
	}
	l.plugins.EmitWorkflowFailed(ctx, res.WorkflowID, s.Kind(), res.Err, res.CompensationErr)
	return res
}

func (l *Ledger) emitFailed(ctx context.Context, res saga.Result) {
	var kind string
	if w, err := l.sagas.Workflow(ctx, res.WorkflowID); err == nil {
		kind = w.Kind
	}
	l.plugins.EmitWorkflowFailed(ctx, res.WorkflowID, kind, res.Err, res.CompensationErr)
}

// childStep wraps a child workflow as a step of a parent. The child id is
// fixed up front so a crash mid-child can still be rolled back.
func (l *Ledger) childStep(name string, run func(ctx context.Context, childID string) error) (saga.Step, error) {
	childID := id.NewWorkflowID().String()
	comp, err := saga.NewCompensation(saga.KindWorkflow, saga.WorkflowRef{WorkflowID: childID})
	if err != nil {
		return saga.Step{}, err
	}
	return saga.Step{
		Name:     name,
		Recovery: comp,
		Action: func(ctx context.Context) (*saga.Compensation, error) {
			if err := run(ctx, childID); err != nil {
				// The child compensated itself.
				return nil, err
			}
			return comp, nil
		},
	}, nil
}

// ──────────────────────────────────────────────────
// Compensation handlers
// ──────────────────────────────────────────────────

// undo builds the compensation reversing the forward adjustment adj.
func undo(kind string, adj adjustment) (*saga.Compensation, error) {
	return saga.NewCompensation(kind, adjustment{
		AccountID: adj.AccountID,
		Asset:     adj.Asset,
		Amount:    adj.Amount,
		Reference: adj.Reference + ":undo",
		Undoes:    adj.Reference,
	})
}

func (l *Ledger) registerCompensations() {
	l.sagas.Handle(compensateCredit, l.adjustmentHandler(false))
	l.sagas.Handle(compensateDebit, l.adjustmentHandler(true))
	l.sagas.Handle(compensateFreeze, l.lifecycleHandler(true))
	l.sagas.Handle(compensateUnfreeze, l.lifecycleHandler(false))
}

// adjustmentHandler reverses a balance change. It relies on the references
// of the balance aggregate for idempotency.
func (l *Ledger) adjustmentHandler(debit bool) saga.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var adj adjustment
		if err := json.Unmarshal(payload, &adj); err != nil {
			return fmt.Errorf("assetledger: decode adjustment: %w", err)
		}
		_, err := l.adjust(ctx, adj, debit, false)
		return err
	}
}

// lifecycleHandler restores the frozen state of an account. Freeze and
// unfreeze are no-ops in the target state, which makes retries safe.
func (l *Ledger) lifecycleHandler(freeze bool) saga.Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var change lifecycleChange
		if err := json.Unmarshal(payload, &change); err != nil {
			return fmt.Errorf("assetledger: decode lifecycle change: %w", err)
		}
		var err error
		if freeze {
			_, _, err = l.freeze(ctx, change.AccountID, change.Reason, change.Actor)
		} else {
			_, _, err = l.unfreeze(ctx, change.AccountID, change.Reason, change.Actor)
		}
		return err
	}
}
