package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/project-flogo/petriflow/definition"
)

// Net is the place/transition view of a net definition: conditions are
// places and tasks are transitions
type Net struct {
	def         *definition.Definition
	places      []string
	transitions []string
	placeIdx    map[string]int
	transIdx    map[string]int

	// incidence is places x transitions, post minus pre
	incidence *mat.Dense
}

// New builds the incidence matrix of the net
func New(def *definition.Definition) *Net {

	n := &Net{
		def:      def,
		placeIdx: make(map[string]int),
		transIdx: make(map[string]int),
	}

	for _, c := range def.Conditions() {
		n.placeIdx[c.ID()] = len(n.places)
		n.places = append(n.places, c.ID())
	}
	for _, t := range def.Tasks() {
		n.transIdx[t.ID()] = len(n.transitions)
		n.transitions = append(n.transitions, t.ID())
	}

	n.incidence = mat.NewDense(len(n.places), len(n.transitions), nil)
	for _, t := range def.Tasks() {
		col := n.transIdx[t.ID()]
		for _, c := range def.PresetConditions(t) {
			row := n.placeIdx[c.ID()]
			n.incidence.Set(row, col, n.incidence.At(row, col)-1)
		}
		for _, f := range def.PostsetFlows(t) {
			row := n.placeIdx[f.Target()]
			n.incidence.Set(row, col, n.incidence.At(row, col)+1)
		}
	}

	return n
}

func (n *Net) Places() []string {
	return n.places
}

func (n *Net) Transitions() []string {
	return n.transitions
}

// Incidence returns a copy of the incidence matrix
func (n *Net) Incidence() *mat.Dense {
	return mat.DenseCopyOf(n.incidence)
}

// IsExact reports whether the state equation describes every firing of the
// net: each task joins and splits with AND semantics or has a single input
// and output
func (n *Net) IsExact() bool {
	for _, t := range n.def.Tasks() {
		if len(t.Preset()) > 1 && t.JoinType() != definition.ControlAND {
			return false
		}
		if len(t.Postset()) > 1 && t.SplitType() != definition.ControlAND {
			return false
		}
	}
	return true
}

// Vector converts token counts per condition to a marking vector
func (n *Net) Vector(counts map[string]int) (*mat.VecDense, error) {
	v := mat.NewVecDense(len(n.places), nil)
	for id, count := range counts {
		idx, ok := n.placeIdx[id]
		if !ok {
			return nil, fmt.Errorf("'%s' is not a condition of net '%s'", id, n.def.ID())
		}
		v.SetVec(idx, float64(count))
	}
	return v, nil
}

// Counts converts a marking vector to the token counts of the marked conditions
func (n *Net) Counts(v mat.Vector) map[string]int {
	counts := make(map[string]int)
	for i, id := range n.places {
		if count := int(math.Round(v.AtVec(i))); count != 0 {
			counts[id] = count
		}
	}
	return counts
}

// Fire applies the state equation m' = m + C·σ, where σ holds the number of
// firings per task
func (n *Net) Fire(m mat.Vector, firings map[string]int) (*mat.VecDense, error) {

	sigma := mat.NewVecDense(len(n.transitions), nil)
	for id, count := range firings {
		idx, ok := n.transIdx[id]
		if !ok {
			return nil, fmt.Errorf("'%s' is not a task of net '%s'", id, n.def.ID())
		}
		sigma.SetVec(idx, float64(count))
	}

	var delta mat.VecDense
	delta.MulVec(n.incidence, sigma)

	var next mat.VecDense
	next.AddVec(m, &delta)
	return &next, nil
}

// IsPInvariant reports whether the weighted token sum is left unchanged by
// every task, yᵀ·C = 0
func (n *Net) IsPInvariant(weights map[string]float64) bool {
	y := mat.NewVecDense(len(n.places), nil)
	for id, w := range weights {
		if idx, ok := n.placeIdx[id]; ok {
			y.SetVec(idx, w)
		}
	}

	var product mat.VecDense
	product.MulVec(n.incidence.T(), y)

	for i := 0; i < product.Len(); i++ {
		if math.Abs(product.AtVec(i)) > 1e-9 {
			return false
		}
	}
	return true
}

// Unbalanced returns the tasks that produce more or fewer tokens than they
// consume
func (n *Net) Unbalanced() []string {
	var unbalanced []string
	ones := mat.NewVecDense(len(n.places), nil)
	for i := range n.places {
		ones.SetVec(i, 1)
	}

	var sums mat.VecDense
	sums.MulVec(n.incidence.T(), ones)
	for i, id := range n.transitions {
		if sums.AtVec(i) != 0 {
			unbalanced = append(unbalanced, id)
		}
	}
	return unbalanced
}
