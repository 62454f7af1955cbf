package petriflow

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/instance"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/state"
	"github.com/project-flogo/petriflow/support/event"
)

const parallelJSON = `
{
  "id": "parallel",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "cx" },
    { "id": "cy" },
    { "id": "dx" },
    { "id": "dy" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "Start", "split": "and" },
    { "id": "X", "decomposition": "work" },
    { "id": "Y", "decomposition": "work" },
    { "id": "End", "join": "and" }
  ],
  "flows": [
    { "from": "in", "to": "Start" },
    { "from": "Start", "to": "cx" },
    { "from": "Start", "to": "cy" },
    { "from": "cx", "to": "X" },
    { "from": "cy", "to": "Y" },
    { "from": "X", "to": "dx" },
    { "from": "Y", "to": "dy" },
    { "from": "dx", "to": "End" },
    { "from": "dy", "to": "End" },
    { "from": "End", "to": "out" }
  ]
}
`

const orderJSON = `
{
  "id": "order",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "approve", "decomposition": "approval", "decompositionType": "net" }
  ],
  "flows": [
    { "from": "in", "to": "approve" },
    { "from": "approve", "to": "out" }
  ]
}
`

const approvalJSON = `
{
  "id": "approval",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "review", "decomposition": "reviewer" }
  ],
  "flows": [
    { "from": "in", "to": "review" },
    { "from": "review", "to": "out" }
  ]
}
`

func loadSpec(t *testing.T, e *Engine, specJSON string) *definition.Definition {
	rep := &definition.DefinitionRep{}
	require.NoError(t, json.Unmarshal([]byte(specJSON), rep))

	def, err := e.LoadSpecification(rep)
	require.NoError(t, err)
	return def
}

func itemOf(t *testing.T, c *instance.Case, taskID string) *instance.WorkItem {
	for _, wi := range c.WorkItems() {
		if wi.TaskID() == taskID && !wi.Status().IsFinal() {
			return wi
		}
	}
	t.Fatalf("no active work item for task '%s' in case '%s'", taskID, c.ID())
	return nil
}

func childOf(t *testing.T, e *Engine, parent *instance.Case) *instance.Case {
	for _, c := range e.Cases() {
		if c.ParentCaseID() == parent.ID() {
			return c
		}
	}
	t.Fatalf("no sub-net case for case '%s'", parent.ID())
	return nil
}

func TestSpecificationLifecycle(t *testing.T) {
	e := New()
	loadSpec(t, e, parallelJSON)

	assert.Equal(t, []string{"parallel"}, e.Specifications())

	rep := &definition.DefinitionRep{}
	require.NoError(t, json.Unmarshal([]byte(parallelJSON), rep))
	_, err := e.LoadSpecification(rep)
	assert.Error(t, err)

	_, err = e.Specification("unknown")
	assert.True(t, errors.Is(err, model.ErrSpecificationNotFound))

	c, err := e.LaunchCase("parallel", nil)
	require.NoError(t, err)

	err = e.UnloadSpecification("parallel")
	assert.Error(t, err, "specification of an active case cannot be unloaded")

	require.NoError(t, e.CancelCase(c.ID()))
	require.NoError(t, e.UnloadSpecification("parallel"))
	assert.Empty(t, e.Specifications())

	err = e.UnloadSpecification("parallel")
	assert.True(t, errors.Is(err, model.ErrSpecificationNotFound))
}

func TestInvalidSpecification(t *testing.T) {
	e := New()

	rep := &definition.DefinitionRep{}
	require.NoError(t, json.Unmarshal([]byte(`{"id": "broken", "conditions": [{"id": "in", "kind": "input"}]}`), rep))

	_, err := e.LoadSpecification(rep)
	assert.Error(t, err)
	assert.Empty(t, e.Specifications())
}

func TestCaseThroughEngine(t *testing.T) {
	e := New()
	loadSpec(t, e, parallelJSON)

	var mu sync.Mutex
	var statuses []event.Status
	e.AddListener(func(evt interface{}) {
		if ce, ok := evt.(*event.CaseEvent); ok {
			mu.Lock()
			statuses = append(statuses, ce.Status)
			mu.Unlock()
		}
	})

	c, err := e.CreateCase("parallel", map[string]interface{}{"amount": 10})
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusNotStarted, c.Status())

	require.NoError(t, e.StartCase(c.ID()))

	items, err := e.WorkItems(c.ID())
	require.NoError(t, err)
	assert.Len(t, items, 2)

	x := itemOf(t, c, "X")
	_, err = e.StartWorkItem(x.ID())
	require.NoError(t, err)
	_, err = e.AllocateWorkItem(itemOf(t, c, "Y").ID(), "bob")
	require.NoError(t, err)

	require.NoError(t, e.SuspendCase(c.ID()))
	_, err = e.CompleteWorkItem(x.ID(), nil)
	assert.True(t, errors.Is(err, model.ErrCaseNotRunning))
	require.NoError(t, e.ResumeCase(c.ID()))

	_, err = e.CompleteWorkItem(x.ID(), map[string]interface{}{"x": "done"})
	require.NoError(t, err)

	y := itemOf(t, c, "Y")
	assert.Equal(t, "bob", y.Participant())
	_, err = e.StartWorkItem(y.ID())
	require.NoError(t, err)
	_, err = e.SuspendWorkItem(y.ID())
	require.NoError(t, err)
	_, err = e.ResumeWorkItem(y.ID())
	require.NoError(t, err)
	_, err = e.CompleteWorkItem(y.ID(), map[string]interface{}{"y": "done"})
	require.NoError(t, err)

	assert.Equal(t, model.CaseStatusCompleted, c.Status())
	assert.Equal(t, "done", c.Data()["x"])
	assert.Equal(t, "done", c.Data()["y"])

	mu.Lock()
	assert.Equal(t, []event.Status{event.CREATED, event.STARTED, event.SUSPENDED, event.RESUMED, event.COMPLETED}, statuses)
	mu.Unlock()

	require.NoError(t, e.RemoveCase(c.ID()))
	_, err = e.Case(c.ID())
	assert.True(t, errors.Is(err, model.ErrCaseNotFound))
}

func TestWorkItemRouting(t *testing.T) {
	e := New()

	_, err := e.StartWorkItem("noprefix")
	assert.True(t, errors.Is(err, model.ErrWorkItemNotFound))

	_, err = e.StartWorkItem("nocase:X:1")
	assert.True(t, errors.Is(err, model.ErrCaseNotFound))

	loadSpec(t, e, parallelJSON)
	c, err := e.LaunchCase("parallel", nil)
	require.NoError(t, err)

	_, err = e.StartWorkItem(c.ID() + ":X:99")
	assert.True(t, errors.Is(err, model.ErrWorkItemNotFound))

	_, err = e.FailWorkItem(itemOf(t, c, "X").ID(), "not started")
	var stateErr *model.WorkItemStateError
	assert.True(t, errors.As(err, &stateErr))

	_, err = e.Fire(c.ID(), "X")
	var enablementErr *model.EnablementError
	assert.True(t, errors.As(err, &enablementErr))
}

func TestSubnetCompletesParentItem(t *testing.T) {
	e := New()
	loadSpec(t, e, orderJSON)
	loadSpec(t, e, approvalJSON)

	parent, err := e.LaunchCase("order", map[string]interface{}{"orderId": "o-1"})
	require.NoError(t, err)

	approve := itemOf(t, parent, "approve")
	assert.Equal(t, model.WorkItemStatusExecuting, approve.Status())

	child := childOf(t, e, parent)
	assert.Equal(t, approve.ID(), child.ParentItemID())
	assert.Equal(t, "approval", child.SpecID())
	assert.Equal(t, "o-1", child.Data()["orderId"])

	review := itemOf(t, child, "review")
	_, err = e.StartWorkItem(review.ID())
	require.NoError(t, err)
	_, err = e.CompleteWorkItem(review.ID(), map[string]interface{}{"approved": true})
	require.NoError(t, err)

	assert.Equal(t, model.CaseStatusCompleted, child.Status())
	assert.Equal(t, model.CaseStatusCompleted, parent.Status())
	assert.Equal(t, true, parent.Data()["approved"])
}

func TestSubnetFailureFailsParentItem(t *testing.T) {
	e := New()
	loadSpec(t, e, orderJSON)
	loadSpec(t, e, approvalJSON)

	parent, err := e.LaunchCase("order", nil)
	require.NoError(t, err)
	approveID := itemOf(t, parent, "approve").ID()

	child := childOf(t, e, parent)
	review := itemOf(t, child, "review")
	_, err = e.StartWorkItem(review.ID())
	require.NoError(t, err)
	_, err = e.FailWorkItem(review.ID(), "rejected")
	require.NoError(t, err)

	assert.Equal(t, model.CaseStatusFailed, child.Status())
	assert.Equal(t, model.CaseStatusFailed, parent.Status())

	approve, err := e.WorkItem(approveID)
	require.NoError(t, err)
	assert.Equal(t, model.WorkItemStatusFailed, approve.Status())
	assert.Contains(t, approve.Reason(), child.ID())
}

func TestCancelParentCancelsSubnet(t *testing.T) {
	e := New()
	loadSpec(t, e, orderJSON)
	loadSpec(t, e, approvalJSON)

	parent, err := e.LaunchCase("order", nil)
	require.NoError(t, err)
	child := childOf(t, e, parent)

	require.NoError(t, e.CancelCase(parent.ID()))

	assert.Equal(t, model.CaseStatusCancelled, parent.Status())
	assert.Equal(t, model.CaseStatusCancelled, child.Status())
}

func TestSubnetUnknownNetFailsItem(t *testing.T) {
	e := New()
	loadSpec(t, e, orderJSON)

	parent, err := e.LaunchCase("order", nil)
	require.NoError(t, err)

	assert.Equal(t, model.CaseStatusFailed, parent.Status())
	assert.Len(t, e.Cases(), 1)
}

func TestRestoreThroughEngine(t *testing.T) {
	repo := state.NewMemoryRepository()
	settings := &Settings{
		MaxStepCount:       1000,
		StateRecording:     state.RecordingModeFull,
		BreakerMaxFailures: 3,
		BreakerTimeout:     time.Minute,
	}

	first := New(WithSettings(settings), WithRepository(repo))
	loadSpec(t, first, parallelJSON)

	c, err := first.LaunchCase("parallel", map[string]interface{}{"amount": 5})
	require.NoError(t, err)

	x := itemOf(t, c, "X")
	_, err = first.StartWorkItem(x.ID())
	require.NoError(t, err)
	_, err = first.CompleteWorkItem(x.ID(), nil)
	require.NoError(t, err)

	second := New(WithSettings(settings), WithRepository(repo))
	_, err = second.RestoreCase(c.ID())
	assert.True(t, errors.Is(err, model.ErrSpecificationNotFound))

	loadSpec(t, second, parallelJSON)
	restored, err := second.RestoreCase(c.ID())
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusRunning, restored.Status())
	assert.Equal(t, c.MarkingSnapshot(), restored.MarkingSnapshot())

	y := itemOf(t, restored, "Y")
	_, err = second.StartWorkItem(y.ID())
	require.NoError(t, err)
	_, err = second.CompleteWorkItem(y.ID(), nil)
	require.NoError(t, err)

	assert.Equal(t, model.CaseStatusCompleted, restored.Status())
	assert.Equal(t, 5, restored.Data()["amount"])

	_, err = New().RestoreCase(c.ID())
	assert.Error(t, err)
}

func TestIndependentCasesRunInParallel(t *testing.T) {
	e := New()
	loadSpec(t, e, parallelJSON)

	const cases = 8
	ids := make([]string, cases)

	var wg sync.WaitGroup
	for i := 0; i < cases; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			c, err := e.LaunchCase("parallel", map[string]interface{}{"n": i})
			if !assert.NoError(t, err) {
				return
			}
			ids[i] = c.ID()

			items, err := e.WorkItems(c.ID())
			if !assert.NoError(t, err) {
				return
			}
			for _, wi := range items {
				_, err = e.StartWorkItem(wi.ID())
				assert.NoError(t, err)
				_, err = e.CompleteWorkItem(wi.ID(), map[string]interface{}{wi.TaskID(): i})
				assert.NoError(t, err)
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			for _, c := range e.Cases() {
				_ = c.MarkingSnapshot()
			}
		}
	}()
	wg.Wait()

	require.Len(t, e.Cases(), cases)
	for i, id := range ids {
		c, err := e.Case(id)
		require.NoError(t, err)
		assert.Equal(t, model.CaseStatusCompleted, c.Status())

		// data never leaks between cases
		assert.Equal(t, i, c.Data()["n"])
		assert.Equal(t, i, c.Data()["X"])
		assert.Equal(t, i, c.Data()["Y"])
	}
}
