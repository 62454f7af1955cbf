package definition

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sequenceJSON = `
{
  "id": "sequence",
  "name": "Sequence",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "A", "split": "and" },
    { "id": "B", "decomposition": "approve" }
  ],
  "flows": [
    { "from": "in", "to": "A" },
    { "from": "A", "to": "B" },
    { "from": "B", "to": "out" }
  ]
}
`

const choiceJSON = `
{
  "id": "choice",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "big" },
    { "id": "small" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "route", "split": "xor" },
    { "id": "handleBig", "cancellationSet": ["small"] },
    { "id": "handleSmall" }
  ],
  "flows": [
    { "from": "in", "to": "route" },
    { "id": "toBig", "from": "route", "to": "big", "guard": "amount > 100", "ordering": 1 },
    { "id": "toSmall", "from": "route", "to": "small", "default": true, "ordering": 2 },
    { "from": "big", "to": "handleBig" },
    { "from": "small", "to": "handleSmall" },
    { "from": "handleBig", "to": "out" },
    { "from": "handleSmall", "to": "out" }
  ]
}
`

func buildRep(t *testing.T, src string) *DefinitionRep {
	rep := &DefinitionRep{}
	err := json.Unmarshal([]byte(src), rep)
	require.Nil(t, err)
	return rep
}

func TestNewDefinitionSequence(t *testing.T) {
	def, err := NewDefinition(buildRep(t, sequenceJSON))
	require.Nil(t, err)

	assert.Equal(t, "sequence", def.ID())
	assert.Equal(t, "Sequence", def.Name())
	assert.Equal(t, "in", def.InputCondition().ID())
	assert.Equal(t, "out", def.OutputCondition().ID())

	// A -> B goes through an implicit condition
	implicit := def.GetCondition("c{A_B}")
	require.NotNil(t, implicit)
	assert.Equal(t, KindImplicit, implicit.Kind())

	a := def.GetTask("A")
	require.NotNil(t, a)
	assert.True(t, a.IsAutomatic())
	// a declared and-split on a single flow is normalized
	assert.Equal(t, ControlXOR, a.SplitType())

	flows := def.PostsetFlows(a)
	require.Len(t, flows, 1)
	assert.Equal(t, "c{A_B}", flows[0].Target())

	b := def.GetTask("B")
	assert.False(t, b.IsAutomatic())
	assert.Equal(t, DecompositionManual, b.Decomposition().Type)
	preset := def.PresetConditions(b)
	require.Len(t, preset, 1)
	assert.Equal(t, "c{A_B}", preset[0].ID())

	assert.Equal(t, []*Task{a}, def.PresetTasks(implicit))
	assert.Equal(t, []*Task{b}, def.PostsetTasks(implicit))

	_, isCond := def.GetElement("in").(*Condition)
	assert.True(t, isCond)
	_, isTask := def.GetElement("B").(*Task)
	assert.True(t, isTask)
	assert.Nil(t, def.GetElement("missing"))
}

func TestNewDefinitionChoice(t *testing.T) {
	def, err := NewDefinition(buildRep(t, choiceJSON))
	require.Nil(t, err)

	route := def.GetTask("route")
	assert.Equal(t, ControlXOR, route.SplitType())

	flows := def.PostsetFlows(route)
	require.Len(t, flows, 2)
	assert.Equal(t, "toBig", flows[0].ID())
	assert.True(t, flows[1].IsDefault())

	assert.Equal(t, []string{"small"}, def.GetTask("handleBig").CancellationSet())
	assert.Len(t, def.Tasks(), 3)
	assert.Len(t, def.Conditions(), 4)
}

func TestFlowGuard(t *testing.T) {
	def, err := NewDefinition(buildRep(t, choiceJSON))
	require.Nil(t, err)

	toBig := def.GetFlow("toBig")
	ok, err := toBig.EvalGuard(map[string]interface{}{"amount": 150})
	assert.Nil(t, err)
	assert.True(t, ok)

	ok, err = toBig.EvalGuard(map[string]interface{}{"amount": 5})
	assert.Nil(t, err)
	assert.False(t, ok)

	// no guard always holds
	ok, err = def.GetFlow("toSmall").EvalGuard(nil)
	assert.Nil(t, err)
	assert.True(t, ok)
}

func TestFlowGuardBareVariable(t *testing.T) {
	rep := &DefinitionRep{ID: "g",
		Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "c1"}, {ID: "c2"}, {ID: "out", Kind: "output"}},
		Tasks:      []*TaskRep{{ID: "A", Split: "xor"}, {ID: "B"}, {ID: "C"}},
		Flows: []*FlowRep{
			{From: "in", To: "A"},
			{ID: "f1", From: "A", To: "c1", Guard: "approved", Ordering: 1},
			{ID: "f2", From: "A", To: "c2", Guard: "count", Ordering: 2, Default: true},
			{From: "c1", To: "B"},
			{From: "c2", To: "C"},
			{From: "B", To: "out"},
			{From: "C", To: "out"},
		},
	}

	def, err := NewDefinition(rep)
	require.NoError(t, err)

	f1 := def.GetFlow("f1")
	ok, err := f1.EvalGuard(map[string]interface{}{"approved": true})
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = f1.EvalGuard(map[string]interface{}{"approved": false})
	assert.NoError(t, err)
	assert.False(t, ok)

	// an undefined variable does not hold
	ok, err = f1.EvalGuard(map[string]interface{}{})
	assert.NoError(t, err)
	assert.False(t, ok)

	// a guard that is not a bool fails when it runs
	_, err = def.GetFlow("f2").EvalGuard(map[string]interface{}{"count": 3})
	var guardErr *GuardError
	assert.True(t, errors.As(err, &guardErr))
}

func TestNewDefinitionInvalid(t *testing.T) {

	tests := []struct {
		name    string
		rep     *DefinitionRep
		problem string
	}{
		{
			name: "missing input",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A"}},
				Flows:      []*FlowRep{{From: "A", To: "out"}},
			},
			problem: "missing input condition",
		},
		{
			name: "duplicate output",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "o1", Kind: "output"}, {ID: "o2", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", Split: "and"}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "o1"}, {From: "A", To: "o2"}},
			},
			problem: "duplicate output condition 'o2'",
		},
		{
			name: "dangling flow",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A"}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "nowhere"}},
			},
			problem: "unknown target 'nowhere'",
		},
		{
			name: "condition to condition",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Flows:      []*FlowRep{{From: "in", To: "out"}},
			},
			problem: "connects condition 'in' to condition 'out'",
		},
		{
			name: "unspecified split",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "c1"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A"}, {ID: "B", Join: "xor"}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "c1"}, {From: "A", To: "B"}, {From: "c1", To: "B"}, {From: "B", To: "out"}},
			},
			problem: "task 'A' split: type must be declared for 2 flows",
		},
		{
			name: "guard on and split",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "c1"}, {ID: "c2"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", Split: "and"}, {ID: "B", Join: "and"}},
				Flows: []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "c1", Guard: "x"}, {From: "A", To: "c2"},
					{From: "c1", To: "B"}, {From: "c2", To: "B"}, {From: "B", To: "out"}},
			},
			problem: "cannot have a guard or default flag",
		},
		{
			name: "two defaults",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", Split: "or"}, {ID: "B"}, {ID: "C"}},
				Flows: []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "B", Default: true}, {From: "A", To: "C", Default: true},
					{From: "B", To: "out"}, {From: "C", To: "out"}},
			},
			problem: "task 'A' has 2 default flows",
		},
		{
			name: "unknown cancellation element",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", CancellationSet: []string{"ghost"}}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "out"}},
			},
			problem: "references unknown element 'ghost'",
		},
		{
			name: "invalid multi-instance",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", MultiInstance: &MultiInstanceRep{Min: 4, Max: 2}}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "out"}},
			},
			problem: "max 2 is lower than min 4",
		},
		{
			name: "invalid guard",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A"}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "out", Guard: "amount >"}},
			},
			problem: "invalid guard",
		},
		{
			name: "timer on automatic task",
			rep: &DefinitionRep{ID: "n",
				Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
				Tasks:      []*TaskRep{{ID: "A", Timer: &TimerRep{Duration: "1m"}}},
				Flows:      []*FlowRep{{From: "in", To: "A"}, {From: "A", To: "out"}},
			},
			problem: "automatic task 'A' cannot have a timer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := NewDefinition(tt.rep)
			assert.Nil(t, def)
			require.NotNil(t, err)

			var topoErr *TopologyError
			require.True(t, errors.As(err, &topoErr))
			assert.Equal(t, "n", topoErr.NetID)
			assert.Contains(t, topoErr.Error(), tt.problem)
		})
	}
}

func TestMultiInstanceAttributes(t *testing.T) {
	rep := &DefinitionRep{ID: "mi",
		Conditions: []*ConditionRep{{ID: "in", Kind: "input"}, {ID: "out", Kind: "output"}},
		Tasks: []*TaskRep{{ID: "review", MultiInstance: &MultiInstanceRep{
			Min: 2, Max: 5, Threshold: 3, Completion: "threshold", Creation: "dynamic", Query: "reviewers", Accumulate: "reviews",
		}, Timer: &TimerRep{Trigger: "onExecuting", Duration: "2h"}}},
		Flows: []*FlowRep{{From: "in", To: "review"}, {From: "review", To: "out"}},
	}

	def, err := NewDefinition(rep)
	require.Nil(t, err)

	task := def.GetTask("review")
	require.True(t, task.IsMultiInstance())
	assert.False(t, task.IsAutomatic())
	assert.Equal(t, TimerOnExecuting, task.Timer().Trigger)
	assert.Equal(t, 2*time.Hour, task.Timer().Duration)

	mi := task.MultiInstance()
	assert.Equal(t, CreationDynamic, mi.Creation())
	assert.Equal(t, CompletionThreshold, mi.Completion())
	assert.True(t, mi.CanAdd())
	assert.Equal(t, 3, mi.Required(5))
	assert.Equal(t, 2, mi.Required(2))
	assert.Equal(t, "reviews", mi.Accumulate())

	// collection larger than max is clamped
	n, items, err := mi.Instances(map[string]interface{}{"reviewers": []interface{}{"a", "b", "c", "d", "e", "f", "g"}})
	assert.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []interface{}{"a", "b", "c", "d", "e"}, items)

	// collection smaller than min is padded
	n, items, err = mi.Instances(map[string]interface{}{"reviewers": []interface{}{"a"}})
	assert.Nil(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []interface{}{"a", nil}, items)

	// count query
	n, _, err = mi.Instances(map[string]interface{}{"reviewers": 4})
	assert.Nil(t, err)
	assert.Equal(t, 4, n)
}

func TestMultiInstanceDefaults(t *testing.T) {
	mi, err := newMultiInstance(&MultiInstanceRep{Creation: "uponDemand", Max: 3})
	require.Nil(t, err)
	assert.Equal(t, 1, mi.Min())
	assert.Equal(t, 3, mi.Max())
	assert.Equal(t, CompletionAll, mi.Completion())
	assert.Equal(t, 3, mi.Required(3))

	n, items, err := mi.Instances(nil)
	assert.Nil(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, items, 1)

	_, err = newMultiInstance(&MultiInstanceRep{Completion: "threshold", Max: 2})
	assert.NotNil(t, err)

	_, err = newMultiInstance(&MultiInstanceRep{Min: 1, Max: 2, Threshold: 3})
	assert.NotNil(t, err)
}
