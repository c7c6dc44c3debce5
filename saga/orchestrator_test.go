package saga_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/assetledger/saga"
)

type fakeStore struct {
	mu        sync.Mutex
	workflows map[string]*saga.Workflow
	order     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{workflows: make(map[string]*saga.Workflow)}
}

func (s *fakeStore) SaveWorkflow(_ context.Context, w *saga.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[w.ID]; !ok {
		s.order = append(s.order, w.ID)
	}
	s.workflows[w.ID] = w.Clone()
	return nil
}

func (s *fakeStore) GetWorkflow(_ context.Context, id string) (*saga.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, saga.ErrWorkflowNotFound
	}
	return w.Clone(), nil
}

func (s *fakeStore) ListWorkflows(_ context.Context, opts saga.ListOpts) ([]*saga.Workflow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*saga.Workflow
	for _, id := range s.order {
		w := s.workflows[id]
		if len(opts.Statuses) > 0 && !containsStatus(opts.Statuses, w.Status) {
			continue
		}
		out = append(out, w.Clone())
	}
	return out, nil
}

func containsStatus(list []saga.Status, s saga.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// journal records executed compensations and fails kinds listed in failing.
type journal struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (j *journal) handler(kind string) saga.Handler {
	return func(_ context.Context, payload json.RawMessage) error {
		var name string
		_ = json.Unmarshal(payload, &name)
		j.mu.Lock()
		defer j.mu.Unlock()
		if j.failing[name] {
			return errors.New("boom")
		}
		j.calls = append(j.calls, name)
		return nil
	}
}

func (j *journal) executed() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func undo(name string) *saga.Compensation {
	c, err := saga.NewCompensation("test.undo", name)
	if err != nil {
		panic(err)
	}
	return c
}

func succeed(name string) saga.Action {
	return func(context.Context) (*saga.Compensation, error) { return undo(name), nil }
}

func failWith(err error) saga.Action {
	return func(context.Context) (*saga.Compensation, error) { return nil, err }
}

func setup(failing ...string) (*saga.Orchestrator, *fakeStore, *journal) {
	store := newFakeStore()
	j := &journal{failing: make(map[string]bool)}
	for _, f := range failing {
		j.failing[f] = true
	}
	o := saga.NewOrchestrator(store)
	o.Handle("test.undo", j.handler("test.undo"))
	return o, store, j
}

func TestBuilderValidation(t *testing.T) {
	_, err := saga.New("").Step("a", succeed("a")).Build()
	assert.ErrorIs(t, err, saga.ErrInvalidSaga)

	_, err = saga.New("transfer").Build()
	assert.ErrorIs(t, err, saga.ErrInvalidSaga)

	_, err = saga.New("transfer").Step("a", succeed("a")).Step("a", succeed("a")).Build()
	assert.ErrorIs(t, err, saga.ErrInvalidSaga)

	_, err = saga.New("transfer").Step("a", nil).Build()
	assert.ErrorIs(t, err, saga.ErrInvalidSaga)

	s, err := saga.New("transfer").WithID("wf-1").Step("a", succeed("a")).Build()
	require.NoError(t, err)
	assert.Equal(t, "wf-1", s.ID())
	assert.Equal(t, 1, s.Steps())
}

func TestRunCompletes(t *testing.T) {
	o, store, j := setup()
	s := saga.New("transfer").
		WithInput(map[string]int{"amount": 5}).
		Step("debit", succeed("debit")).
		Step("credit", succeed("credit")).
		MustBuild()

	res := o.Run(context.Background(), s)
	require.True(t, res.OK(), res.Error())
	assert.NoError(t, res.Error())
	assert.Empty(t, j.executed())

	w, err := store.GetWorkflow(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusCompleted, w.Status)
	assert.Len(t, w.Steps, 2)
	assert.Len(t, w.Compensations, 2)
	assert.JSONEq(t, `{"amount":5}`, string(w.Input))
}

func TestRunCompensatesLIFO(t *testing.T) {
	o, _, j := setup()
	cause := errors.New("destination frozen")
	s := saga.New("transfer").
		Step("one", succeed("one")).
		Step("two", succeed("two")).
		Step("three", failWith(cause)).
		Step("four", succeed("four")).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.Equal(t, saga.StatusFailed, res.Status)
	assert.True(t, res.Compensated)
	assert.ErrorIs(t, res.Err, cause)
	var stepErr *saga.StepError
	require.ErrorAs(t, res.Err, &stepErr)
	assert.Equal(t, "three", stepErr.Step)
	assert.NoError(t, res.CompensationErr)
	assert.Equal(t, []string{"two", "one"}, j.executed())
}

func TestCompensateTwiceIsNoop(t *testing.T) {
	o, _, j := setup()
	s := saga.New("transfer").
		Step("one", succeed("one")).
		Step("two", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	require.True(t, res.Compensated)

	again, err := o.Compensate(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, again.Status)
	assert.Equal(t, []string{"one"}, j.executed())
}

func TestCompensationHaltsOnError(t *testing.T) {
	o, store, j := setup("two")
	s := saga.New("batch").
		Step("one", succeed("one")).
		Step("two", succeed("two")).
		Step("three", succeed("three")).
		Step("four", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.Equal(t, saga.StatusFailed, res.Status)
	assert.False(t, res.Compensated)
	assert.Error(t, res.CompensationErr)
	assert.Equal(t, []string{"three"}, j.executed())

	w, err := store.GetWorkflow(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	assert.Len(t, w.Pending(), 2)
	assert.Len(t, w.CompensationErrors, 1)
}

func TestCompensationContinuesWithError(t *testing.T) {
	o, _, j := setup("two")
	s := saga.New("batch").
		ContinueWithError(true).
		Step("one", succeed("one")).
		Step("two", succeed("two")).
		Step("three", succeed("three")).
		Step("four", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.False(t, res.Compensated)
	assert.Error(t, res.CompensationErr)
	assert.Equal(t, []string{"three", "one"}, j.executed())
}

func TestManualRetryAfterFailedCompensation(t *testing.T) {
	o, _, j := setup("one")
	s := saga.New("batch").
		Step("one", succeed("one")).
		Step("two", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	require.False(t, res.Compensated)

	j.mu.Lock()
	j.failing = map[string]bool{}
	j.mu.Unlock()

	again, err := o.Compensate(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	assert.True(t, again.Compensated)
	assert.NoError(t, again.CompensationErr)
	assert.Equal(t, []string{"one"}, j.executed())
}

func TestParallelCompensation(t *testing.T) {
	o, _, j := setup()
	s := saga.New("bulk").
		ParallelCompensation(true).
		Step("one", succeed("one")).
		Step("two", succeed("two")).
		Step("three", succeed("three")).
		Step("four", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.True(t, res.Compensated)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, j.executed())
}

func TestStepTimeoutRegistersLateEffect(t *testing.T) {
	o, _, j := setup()
	late := func(ctx context.Context) (*saga.Compensation, error) {
		<-ctx.Done()
		return undo("late"), nil
	}
	s := saga.New("transfer").
		StepTimeout(10 * time.Millisecond).
		Step("one", succeed("one")).
		Step("late", late).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.Equal(t, saga.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, saga.ErrStepTimeout)
	assert.True(t, res.Compensated)
	assert.Equal(t, []string{"late", "one"}, j.executed())
}

func TestUnknownCompensationKind(t *testing.T) {
	o, _, _ := setup()
	s := saga.New("transfer").
		Step("one", func(context.Context) (*saga.Compensation, error) {
			return &saga.Compensation{Kind: "nope"}, nil
		}).
		Step("two", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.ErrorIs(t, res.CompensationErr, saga.ErrUnknownCompensation)
}

func TestRecoverCompensatesUnfinished(t *testing.T) {
	o, store, j := setup()
	ctx := context.Background()

	// A workflow persisted as running with a provisional recovery entry,
	// as left behind by a crash in the middle of step "two".
	crashed := &saga.Workflow{
		ID:     "wf-crashed",
		Kind:   "transfer",
		Status: saga.StatusRunning,
		Compensations: []saga.Compensation{
			{Kind: "test.undo", Payload: json.RawMessage(`"one"`), Step: "one"},
			{Kind: "test.undo", Payload: json.RawMessage(`"two"`), Step: "two", Provisional: true},
		},
	}
	require.NoError(t, store.SaveWorkflow(ctx, crashed))

	done := saga.New("transfer").Step("one", succeed("other")).MustBuild()
	require.True(t, o.Run(ctx, done).OK())

	results, err := o.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "wf-crashed", results[0].WorkflowID)
	assert.True(t, results[0].Compensated)
	assert.Equal(t, []string{"two", "one"}, j.executed())

	status, err := o.Status(ctx, "wf-crashed")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, status)
}

func TestRecoveryCompensationDroppedAfterStep(t *testing.T) {
	o, store, j := setup()
	s := saga.New("transfer").
		StepWithRecovery("one", undo("recovery"), succeed("one")).
		Step("two", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.True(t, res.Compensated)
	assert.Equal(t, []string{"one"}, j.executed())

	w, err := store.GetWorkflow(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	require.Len(t, w.Compensations, 1)
	assert.False(t, w.Compensations[0].Provisional)
}

func TestRecoveryCompensationKeptWhenStepFails(t *testing.T) {
	o, store, j := setup()
	s := saga.New("transfer").
		Step("one", succeed("one")).
		StepWithRecovery("two", undo("recovery"), failWith(errors.New("commit unacknowledged"))).
		MustBuild()

	res := o.Run(context.Background(), s)
	assert.True(t, res.Compensated)
	assert.Equal(t, []string{"recovery", "one"}, j.executed())

	w, err := store.GetWorkflow(context.Background(), res.WorkflowID)
	require.NoError(t, err)
	require.Len(t, w.Compensations, 2)
	assert.False(t, w.Compensations[1].Provisional)
	assert.True(t, w.Compensations[1].Done)
}

func TestChildWorkflowCompensation(t *testing.T) {
	o, _, j := setup()
	ctx := context.Background()

	child := saga.New("transfer").WithID("wf-child").Step("debit", succeed("child-debit")).MustBuild()
	parent := saga.New("bulk").
		Step("child", func(ctx context.Context) (*saga.Compensation, error) {
			if res := o.Run(ctx, child); !res.OK() {
				return nil, res.Error()
			}
			return saga.NewCompensation(saga.KindWorkflow, saga.WorkflowRef{WorkflowID: "wf-child"})
		}).
		Step("next", failWith(errors.New("fail"))).
		MustBuild()

	res := o.Run(ctx, parent)
	assert.True(t, res.Compensated)
	assert.Equal(t, []string{"child-debit"}, j.executed())

	status, err := o.Status(ctx, "wf-child")
	require.NoError(t, err)
	assert.Equal(t, saga.StatusFailed, status)
}

func TestStatusUnknownWorkflow(t *testing.T) {
	o, _, _ := setup()
	_, err := o.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, saga.ErrWorkflowNotFound)
}
