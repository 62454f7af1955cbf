package definition

import (
	"fmt"

	"github.com/expr-lang/expr/vm"
)

// CreationMode determines how the instances of an activation are created
type CreationMode int

const (
	// CreationStatic fixes the number of instances when the task fires
	CreationStatic CreationMode = iota

	// CreationDynamic allows instances to be added while the activation runs
	CreationDynamic

	// CreationUponDemand starts with the minimum and only grows on request
	CreationUponDemand
)

func (m CreationMode) String() string {
	switch m {
	case CreationDynamic:
		return "dynamic"
	case CreationUponDemand:
		return "uponDemand"
	default:
		return "static"
	}
}

// CompletionMode determines when an activation is done
type CompletionMode int

const (
	CompletionAll CompletionMode = iota
	CompletionThreshold
	CompletionAny
)

func (m CompletionMode) String() string {
	switch m {
	case CompletionThreshold:
		return "threshold"
	case CompletionAny:
		return "any"
	default:
		return "all"
	}
}

// MultiInstance holds the attributes governing instance creation and
// completion of a multi-instance task
type MultiInstance struct {
	min       int
	max       int
	threshold int

	creation   CreationMode
	completion CompletionMode

	query      string
	program    *vm.Program
	accumulate string
}

// Min returns the minimum number of instances of an activation
func (mi *MultiInstance) Min() int {
	return mi.min
}

// Max returns the maximum number of instances of an activation
func (mi *MultiInstance) Max() int {
	return mi.max
}

// Threshold returns the number of completed instances needed by the
// threshold completion mode
func (mi *MultiInstance) Threshold() int {
	return mi.threshold
}

// Creation returns the creation mode
func (mi *MultiInstance) Creation() CreationMode {
	return mi.creation
}

// Completion returns the completion mode
func (mi *MultiInstance) Completion() CompletionMode {
	return mi.completion
}

// Query returns the instance query expression
func (mi *MultiInstance) Query() string {
	return mi.query
}

// Accumulate returns the case data key collecting the instance outputs,
// empty when instance outputs are merged into the case data
func (mi *MultiInstance) Accumulate() string {
	return mi.accumulate
}

// CanAdd indicates if instances can be added to a running activation
func (mi *MultiInstance) CanAdd() bool {
	return mi.creation != CreationStatic
}

// Required returns the number of completed instances that completes an
// activation of n instances
func (mi *MultiInstance) Required(n int) int {
	switch mi.completion {
	case CompletionAny:
		return 1
	case CompletionThreshold:
		if mi.threshold < n {
			return mi.threshold
		}
		return n
	default:
		return n
	}
}

// Instances computes the number of instances to create when the task fires.
// Items holds the per-instance data produced by a collection query, padded
// with nil up to the instance count.
func (mi *MultiInstance) Instances(data map[string]interface{}) (n int, items []interface{}, err error) {

	if mi.creation == CreationUponDemand || mi.program == nil {
		return mi.min, make([]interface{}, mi.min), nil
	}

	n, items, err = evalQuery(mi.program, mi.query, data)
	if err != nil {
		return 0, nil, err
	}

	if n < mi.min {
		n = mi.min
	}
	if n > mi.max {
		n = mi.max
	}

	for len(items) < n {
		items = append(items, nil)
	}

	return n, items[:n], nil
}

func (mi *MultiInstance) validate() error {
	if mi.min < 1 {
		return fmt.Errorf("min must be at least 1, got %d", mi.min)
	}
	if mi.max < mi.min {
		return fmt.Errorf("max %d is lower than min %d", mi.max, mi.min)
	}
	if mi.threshold > mi.max {
		return fmt.Errorf("threshold %d exceeds max %d", mi.threshold, mi.max)
	}
	if mi.completion == CompletionThreshold && mi.threshold < 1 {
		return fmt.Errorf("threshold completion requires a threshold of at least 1")
	}
	return nil
}
