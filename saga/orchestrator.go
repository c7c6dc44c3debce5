package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/assetledger/id"
	"github.com/xraph/assetledger/types"
)

// Handler executes a compensation payload. Handlers must be idempotent:
// compensations are retried after crashes and by manual compensation.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// Orchestrator runs sagas and their compensations.
type Orchestrator struct {
	store  Store
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	locks sync.Map // workflow id -> *sync.Mutex
}

// NewOrchestrator returns an Orchestrator persisting to store.
func NewOrchestrator(store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.handlers[KindWorkflow] = o.compensateChild
	return o
}

// Handle registers the handler for a compensation kind, replacing any previous one.
func (o *Orchestrator) Handle(kind string, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[kind] = h
}

func (o *Orchestrator) handler(kind string) (Handler, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	h, ok := o.handlers[kind]
	return h, ok
}

func (o *Orchestrator) lock(workflowID string) func() {
	v, _ := o.locks.LoadOrStore(workflowID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Status returns the status of a persisted workflow.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (Status, error) {
	w, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return "", err
	}
	return w.Status, nil
}

// Workflow returns the persisted workflow.
func (o *Orchestrator) Workflow(ctx context.Context, workflowID string) (*Workflow, error) {
	return o.store.GetWorkflow(ctx, workflowID)
}

// Run executes s. Steps run in order; the first failure or timeout moves the
// workflow to compensating and every registered compensation is executed.
// The returned Result is never nil-valued: failures are reported in it.
func (o *Orchestrator) Run(ctx context.Context, s *Saga) Result {
	w := &Workflow{
		Entity:               types.NewEntity(),
		ID:                   s.id,
		Kind:                 s.kind,
		ParentID:             s.parentID,
		Status:               StatusPending,
		Input:                s.input,
		ParallelCompensation: s.parallel,
		ContinueWithError:    s.continueWithError,
	}
	if w.ID == "" {
		w.ID = id.NewWorkflowID().String()
	}

	unlock := o.lock(w.ID)
	defer unlock()

	log := o.logger.With("workflow_id", w.ID, "kind", w.Kind)

	if err := o.save(ctx, w); err != nil {
		return Result{WorkflowID: w.ID, Status: StatusFailed, Err: err}
	}

	w.Status = StatusRunning
	if err := o.save(ctx, w); err != nil {
		return o.fail(ctx, log, w, err)
	}

	for _, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return o.fail(ctx, log, w, &StepError{Step: st.Name, Err: err})
		}
		if err := o.runStep(ctx, w, st, s.stepTimeout); err != nil {
			return o.fail(ctx, log, w, err)
		}
	}

	w.Status = StatusCompleted
	if err := o.save(ctx, w); err != nil {
		return o.fail(ctx, log, w, err)
	}

	log.Debug("workflow completed", "steps", len(s.steps))
	return Result{WorkflowID: w.ID, Status: StatusCompleted}
}

func (o *Orchestrator) runStep(ctx context.Context, w *Workflow, st Step, defaultTimeout time.Duration) error {
	rec := StepRecord{Name: st.Name, Status: StepRunning, StartedAt: time.Now().UTC()}
	w.Steps = append(w.Steps, rec)
	idx := len(w.Steps) - 1

	provisional := -1
	if st.Recovery != nil {
		c := *st.Recovery
		c.Step = st.Name
		c.Provisional = true
		w.Compensations = append(w.Compensations, c)
		provisional = len(w.Compensations) - 1
	}
	if err := o.save(ctx, w); err != nil {
		if provisional >= 0 {
			w.Compensations = w.Compensations[:provisional]
		}
		return &StepError{Step: st.Name, Err: err}
	}

	timeout := st.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	comp, err := st.Action(stepCtx)
	if err == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s", ErrStepTimeout, timeout)
	} else if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrStepTimeout, timeout, err)
	}
	cancel()

	// A failed action that returned no compensation may still have committed
	// its effect, so the recovery entry stays. Recovery compensations no-op
	// when the effect is absent. Otherwise the returned compensation supersedes it.
	if provisional >= 0 {
		if err != nil && comp == nil {
			w.Compensations[provisional].Provisional = false
		} else {
			w.Compensations = append(w.Compensations[:provisional], w.Compensations[provisional+1:]...)
		}
	}
	if comp != nil {
		c := *comp
		c.Step = st.Name
		c.Provisional = false
		w.Compensations = append(w.Compensations, c)
	}

	w.Steps[idx].FinishedAt = time.Now().UTC()
	if err != nil {
		w.Steps[idx].Status = StepFailed
		w.Steps[idx].Error = err.Error()
		return &StepError{Step: st.Name, Err: err}
	}
	w.Steps[idx].Status = StepCompleted
	if err := o.save(ctx, w); err != nil {
		return &StepError{Step: st.Name, Err: err}
	}
	return nil
}

// fail records cause and compensates w. The caller holds the workflow lock.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, w *Workflow, cause error) Result {
	log.Info("workflow step failed, compensating", "error", cause, "compensations", len(w.Pending()))
	w.Error = cause.Error()
	res := o.compensate(context.WithoutCancel(ctx), log, w)
	res.Err = cause
	return res
}

// Compensate runs the outstanding compensations of a persisted workflow.
// Compensations already executed are skipped, so calling it again after a
// successful run is a no-op. A completed workflow is rolled back as well.
func (o *Orchestrator) Compensate(ctx context.Context, workflowID string) (Result, error) {
	return o.compensateWhere(ctx, workflowID, func(*Workflow) bool { return true })
}

// Recover compensates every workflow left pending, running or compensating,
// newest first so child workflows unwind before their parents.
func (o *Orchestrator) Recover(ctx context.Context) ([]Result, error) {
	stale, err := o.store.ListWorkflows(ctx, ListOpts{
		Statuses: []Status{StatusPending, StatusRunning, StatusCompensating},
	})
	if err != nil {
		return nil, fmt.Errorf("saga: list unfinished workflows: %w", err)
	}
	sort.SliceStable(stale, func(i, j int) bool { return stale[i].CreatedAt.After(stale[j].CreatedAt) })

	unfinished := func(w *Workflow) bool { return !w.Status.IsTerminal() }

	results := make([]Result, 0, len(stale))
	for _, w := range stale {
		o.logger.Info("recovering workflow", "workflow_id", w.ID, "status", w.Status)
		res, err := o.compensateWhere(ctx, w.ID, unfinished)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// compensateWhere compensates the workflow if cond holds for its state
// after the workflow lock was taken.
func (o *Orchestrator) compensateWhere(ctx context.Context, workflowID string, cond func(*Workflow) bool) (Result, error) {
	unlock := o.lock(workflowID)
	defer unlock()

	w, err := o.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return Result{WorkflowID: workflowID}, err
	}
	if w.Compensated || !cond(w) {
		return resultOf(w), nil
	}
	if w.Error == "" {
		w.Error = "compensation requested while " + string(w.Status)
	}
	log := o.logger.With("workflow_id", w.ID, "kind", w.Kind)
	return o.compensate(ctx, log, w), nil
}

func (o *Orchestrator) compensate(ctx context.Context, log *slog.Logger, w *Workflow) Result {
	w.Status = StatusCompensating
	w.CompensationErrors = nil
	if err := o.save(ctx, w); err != nil {
		log.Error("persist compensating state", "error", err)
	}

	pending := w.Pending()
	var errs []error
	if w.ParallelCompensation {
		errs = o.compensateParallel(ctx, log, w, pending)
	} else {
		errs = o.compensateSequential(ctx, log, w, pending)
	}

	w.Status = StatusFailed
	w.Compensated = len(errs) == 0 && len(w.Pending()) == 0
	for _, err := range errs {
		w.CompensationErrors = append(w.CompensationErrors, err.Error())
	}
	if err := o.save(ctx, w); err != nil {
		errs = append(errs, err)
	}

	res := resultOf(w)
	if len(errs) > 0 {
		res.CompensationErr = errors.Join(errs...)
		log.Error("workflow compensation incomplete", "error", res.CompensationErr)
	}
	return res
}

func (o *Orchestrator) compensateSequential(ctx context.Context, log *slog.Logger, w *Workflow, pending []int) []error {
	var errs []error
	for i := len(pending) - 1; i >= 0; i-- {
		idx := pending[i]
		if err := o.execute(ctx, w, idx); err != nil {
			errs = append(errs, err)
			if !w.ContinueWithError {
				return errs
			}
			log.Warn("compensation failed, continuing", "step", w.Compensations[idx].Step, "error", err)
		}
		if err := o.save(ctx, w); err != nil {
			log.Error("persist compensation progress", "error", err)
		}
	}
	return errs
}

func (o *Orchestrator) compensateParallel(ctx context.Context, log *slog.Logger, w *Workflow, pending []int) []error {
	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if w.ContinueWithError {
		g = &errgroup.Group{}
		gctx = ctx
	}

	for _, idx := range pending {
		c := w.Compensations[idx]
		g.Go(func() error {
			err := o.run(gctx, c)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				w.Compensations[idx].Error = err.Error()
				errs = append(errs, err)
				if w.ContinueWithError {
					log.Warn("compensation failed, continuing", "step", c.Step, "error", err)
					return nil
				}
				return err
			}
			w.Compensations[idx].Done = true
			w.Compensations[idx].Error = ""
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// execute runs compensation idx and records its outcome on w.
func (o *Orchestrator) execute(ctx context.Context, w *Workflow, idx int) error {
	c := w.Compensations[idx]
	if err := o.run(ctx, c); err != nil {
		w.Compensations[idx].Error = err.Error()
		return err
	}
	w.Compensations[idx].Done = true
	w.Compensations[idx].Error = ""
	return nil
}

func (o *Orchestrator) run(ctx context.Context, c Compensation) error {
	h, ok := o.handler(c.Kind)
	if !ok {
		return fmt.Errorf("%w: %q (step %s)", ErrUnknownCompensation, c.Kind, c.Step)
	}
	if err := h(ctx, c.Payload); err != nil {
		return fmt.Errorf("saga: compensate %s (step %s): %w", c.Kind, c.Step, err)
	}
	return nil
}

func (o *Orchestrator) compensateChild(ctx context.Context, payload json.RawMessage) error {
	var ref WorkflowRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return fmt.Errorf("saga: decode workflow reference: %w", err)
	}
	res, err := o.Compensate(ctx, ref.WorkflowID)
	if errors.Is(err, ErrWorkflowNotFound) {
		// The child was never persisted, so it left no effect.
		return nil
	}
	if err != nil {
		return err
	}
	return res.CompensationErr
}

func (o *Orchestrator) save(ctx context.Context, w *Workflow) error {
	w.Touch()
	if err := o.store.SaveWorkflow(ctx, w); err != nil {
		return fmt.Errorf("saga: save workflow %s: %w", w.ID, err)
	}
	return nil
}

func resultOf(w *Workflow) Result {
	res := Result{WorkflowID: w.ID, Status: w.Status, Compensated: w.Compensated}
	if w.Error != "" {
		res.Err = errors.New(w.Error)
	}
	if len(w.CompensationErrors) > 0 {
		errs := make([]error, len(w.CompensationErrors))
		for i, msg := range w.CompensationErrors {
			errs[i] = errors.New(msg)
		}
		res.CompensationErr = errors.Join(errs...)
	}
	return res
}
