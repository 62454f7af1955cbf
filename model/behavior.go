package model

import (
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
)

type EnterResult int

const (
	ERNotReady EnterResult = iota
	EREnabled
)

// JoinResult is the outcome of evaluating the join of a task
type JoinResult struct {
	Result EnterResult

	// Tokens are the tokens consumed when the task fires, one per
	// contributing preset condition
	Tokens []*identifier.Identifier

	// Waiting lists the preset conditions already holding tokens
	Waiting []string

	// Reason describes why the task is not enabled
	Reason string
}

// Enabled indicates if the task can fire
func (r *JoinResult) Enabled() bool {
	return r.Result == EREnabled
}

type EvalResult int

const (
	EvalWait EvalResult = iota
	EvalDone
	EvalFail
)

// Progress is the state of the instances of one task activation
type Progress struct {
	Instances int
	Completed int
	Failed    int
	Cancelled int
}

// Running returns the number of instances still active
func (p Progress) Running() int {
	return p.Instances - p.Completed - p.Failed - p.Cancelled
}

// TaskBehavior is the execution behavior of a Task.
type TaskBehavior interface {

	// Enter evaluates the join of the task against the current marking and
	// selects the tokens consumed if the task fires
	Enter(context TaskContext) *JoinResult

	// Instances determines the number of instances to create when the task
	// fires, items holds the per-instance data
	Instances(context TaskContext) (n int, items []interface{}, err error)

	// Eval is called each time an instance of the activation finishes, it
	// indicates if the activation is done, has failed or must keep waiting
	Eval(context TaskContext, progress Progress) EvalResult

	// Done is called when the activation is done.  It determines the
	// outgoing flows that receive tokens.
	Done(context TaskContext) (flows []*definition.Flow, err error)
}
