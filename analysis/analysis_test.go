package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/instance"
	_ "github.com/project-flogo/petriflow/model/simple"
)

const sequenceJSON = `
{
  "id": "sequence",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "A" },
    { "id": "B" }
  ],
  "flows": [
    { "from": "in", "to": "A" },
    { "from": "A", "to": "B" },
    { "from": "B", "to": "out" }
  ]
}
`

const parallelJSON = `
{
  "id": "parallel",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "cx" },
    { "id": "cy" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "Start", "split": "and" },
    { "id": "End", "join": "and" }
  ],
  "flows": [
    { "from": "in", "to": "Start" },
    { "from": "Start", "to": "cx" },
    { "from": "Start", "to": "cy" },
    { "from": "cx", "to": "End" },
    { "from": "cy", "to": "End" },
    { "from": "End", "to": "out" }
  ]
}
`

const choiceJSON = `
{
  "id": "choice",
  "conditions": [
    { "id": "in", "kind": "input" },
    { "id": "a" },
    { "id": "b" },
    { "id": "out", "kind": "output" }
  ],
  "tasks": [
    { "id": "route", "split": "xor" },
    { "id": "A" },
    { "id": "B" }
  ],
  "flows": [
    { "from": "in", "to": "route" },
    { "from": "route", "to": "a", "default": true, "ordering": 2 },
    { "from": "route", "to": "b", "guard": "big", "ordering": 1 },
    { "from": "a", "to": "A" },
    { "from": "b", "to": "B" },
    { "from": "A", "to": "out" },
    { "from": "B", "to": "out" }
  ]
}
`

func buildDefinition(t *testing.T, defJSON string) *definition.Definition {
	rep := &definition.DefinitionRep{}
	require.NoError(t, json.Unmarshal([]byte(defJSON), rep))

	def, err := definition.NewDefinition(rep)
	require.NoError(t, err)
	return def
}

func TestIncidence(t *testing.T) {
	n := New(buildDefinition(t, parallelJSON))

	c := n.Incidence()
	rows, cols := c.Dims()
	assert.Equal(t, len(n.Places()), rows)
	assert.Equal(t, 2, cols)

	place := func(id string) int {
		for i, p := range n.Places() {
			if p == id {
				return i
			}
		}
		t.Fatalf("unknown place %s", id)
		return -1
	}
	trans := func(id string) int {
		for i, tr := range n.Transitions() {
			if tr == id {
				return i
			}
		}
		t.Fatalf("unknown transition %s", id)
		return -1
	}

	assert.Equal(t, -1.0, c.At(place("in"), trans("Start")))
	assert.Equal(t, 1.0, c.At(place("cx"), trans("Start")))
	assert.Equal(t, 1.0, c.At(place("cy"), trans("Start")))
	assert.Equal(t, -1.0, c.At(place("cx"), trans("End")))
	assert.Equal(t, 1.0, c.At(place("out"), trans("End")))
	assert.Equal(t, 0.0, c.At(place("in"), trans("End")))

	assert.True(t, n.IsExact())
	assert.ElementsMatch(t, []string{"Start", "End"}, n.Unbalanced())
}

func TestPInvariant(t *testing.T) {
	n := New(buildDefinition(t, parallelJSON))

	assert.True(t, n.IsPInvariant(map[string]float64{"in": 2, "cx": 1, "cy": 1, "out": 2}))
	assert.False(t, n.IsPInvariant(map[string]float64{"in": 1, "cx": 1, "cy": 1, "out": 1}))

	seq := New(buildDefinition(t, sequenceJSON))
	weights := make(map[string]float64)
	for _, p := range seq.Places() {
		weights[p] = 1
	}
	assert.True(t, seq.IsPInvariant(weights))
	assert.Empty(t, seq.Unbalanced())
}

func TestStateEquation(t *testing.T) {
	n := New(buildDefinition(t, parallelJSON))

	m0, err := n.Vector(map[string]int{"in": 1})
	require.NoError(t, err)

	m, err := n.Fire(m0, map[string]int{"Start": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"cx": 1, "cy": 1}, n.Counts(m))

	m, err = n.Fire(m0, map[string]int{"Start": 1, "End": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"out": 1}, n.Counts(m))

	_, err = n.Vector(map[string]int{"nowhere": 1})
	assert.Error(t, err)
	_, err = n.Fire(m0, map[string]int{"Unknown": 1})
	assert.Error(t, err)
}

func TestStateEquationMatchesCase(t *testing.T) {
	def := buildDefinition(t, sequenceJSON)
	n := New(def)

	c, err := instance.NewCase("case1", def, nil, instance.WithAutoFire(false))
	require.NoError(t, err)
	require.NoError(t, c.Start())

	_, err = c.Fire("A")
	require.NoError(t, err)

	counts := make(map[string]int)
	for id, tokens := range c.MarkingSnapshot() {
		counts[id] = len(tokens)
	}

	m0, err := n.Vector(map[string]int{"in": 1})
	require.NoError(t, err)
	m, err := n.Fire(m0, map[string]int{"A": 1})
	require.NoError(t, err)

	assert.Equal(t, counts, n.Counts(m))
}

func TestChoiceIsNotExact(t *testing.T) {
	n := New(buildDefinition(t, choiceJSON))
	assert.False(t, n.IsExact())
}
