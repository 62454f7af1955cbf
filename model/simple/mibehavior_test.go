package simple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/marking"
	"github.com/project-flogo/petriflow/model"
)

func miContext(t *testing.T, mi *definition.MultiInstanceRep) *testContext {
	rep := &definition.DefinitionRep{ID: "mi",
		Conditions: []*definition.ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
		Tasks:      []*definition.TaskRep{{ID: "review", MultiInstance: mi}},
		Flows:      []*definition.FlowRep{{From: "in", To: "review"}, {From: "review", To: "out"}},
	}
	def, err := definition.NewDefinition(rep)
	require.Nil(t, err)

	task := def.GetTask("review")
	return &testContext{def: def, task: task, marking: marking.New(), data: map[string]interface{}{"n": 5}}
}

func TestMultiInstanceThreshold(t *testing.T) {
	ctx := miContext(t, &definition.MultiInstanceRep{Min: 1, Max: 5, Threshold: 3, Completion: "threshold", Query: "n"})

	behavior := New().TaskBehaviorFor(ctx.task)
	_, isMI := behavior.(*MultiInstanceTaskBehavior)
	require.True(t, isMI)

	n, _, err := behavior.Instances(ctx)
	require.Nil(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, model.EvalWait, behavior.Eval(ctx, model.Progress{Instances: 5, Completed: 2}))
	assert.Equal(t, model.EvalDone, behavior.Eval(ctx, model.Progress{Instances: 5, Completed: 3}))

	// two failures still leave three instances able to complete
	assert.Equal(t, model.EvalWait, behavior.Eval(ctx, model.Progress{Instances: 5, Failed: 2}))
	assert.Equal(t, model.EvalFail, behavior.Eval(ctx, model.Progress{Instances: 5, Completed: 1, Failed: 3}))
}

func TestMultiInstanceAll(t *testing.T) {
	ctx := miContext(t, &definition.MultiInstanceRep{Min: 2, Max: 4, Query: "n"})
	behavior := &MultiInstanceTaskBehavior{}

	n, items, err := behavior.Instances(ctx)
	require.Nil(t, err)
	assert.Equal(t, 4, n)
	assert.Len(t, items, 4)

	assert.Equal(t, model.EvalWait, behavior.Eval(ctx, model.Progress{Instances: 4, Completed: 3}))
	assert.Equal(t, model.EvalDone, behavior.Eval(ctx, model.Progress{Instances: 4, Completed: 4}))
	assert.Equal(t, model.EvalFail, behavior.Eval(ctx, model.Progress{Instances: 4, Completed: 3, Failed: 1}))
}

func TestMultiInstanceAny(t *testing.T) {
	ctx := miContext(t, &definition.MultiInstanceRep{Min: 3, Max: 3, Completion: "any"})
	behavior := &MultiInstanceTaskBehavior{}

	n, _, err := behavior.Instances(ctx)
	require.Nil(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, model.EvalWait, behavior.Eval(ctx, model.Progress{Instances: 3}))
	assert.Equal(t, model.EvalDone, behavior.Eval(ctx, model.Progress{Instances: 3, Completed: 1}))
	assert.Equal(t, model.EvalFail, behavior.Eval(ctx, model.Progress{Instances: 3, Failed: 3}))
}

func TestMultiInstanceDynamicCanStillGrow(t *testing.T) {
	ctx := miContext(t, &definition.MultiInstanceRep{Min: 1, Max: 4, Threshold: 2, Completion: "threshold", Creation: "dynamic"})
	behavior := &MultiInstanceTaskBehavior{}

	// one failed instance, but up to three more can be added
	assert.Equal(t, model.EvalWait, behavior.Eval(ctx, model.Progress{Instances: 1, Failed: 1}))
	assert.Equal(t, model.EvalFail, behavior.Eval(ctx, model.Progress{Instances: 4, Failed: 3}))
}
