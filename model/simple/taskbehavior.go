package simple

import (
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/model"
)

// TaskBehavior implements model.TaskBehavior for single instance tasks
type TaskBehavior struct {
}

// Enter implements model.TaskBehavior.Enter
func (tb *TaskBehavior) Enter(ctx model.TaskContext) *model.JoinResult {

	if ctx.Logger().DebugEnabled() {
		ctx.Logger().Debugf("Enter Task '%s'", ctx.Task().ID())
	}

	return EvalJoin(ctx)
}

// Instances implements model.TaskBehavior.Instances
func (tb *TaskBehavior) Instances(ctx model.TaskContext) (int, []interface{}, error) {
	return 1, []interface{}{nil}, nil
}

// Eval implements model.TaskBehavior.Eval
func (tb *TaskBehavior) Eval(ctx model.TaskContext, progress model.Progress) model.EvalResult {

	switch {
	case progress.Completed > 0:
		return model.EvalDone
	case progress.Failed > 0:
		return model.EvalFail
	default:
		return model.EvalWait
	}
}

// Done implements model.TaskBehavior.Done
func (tb *TaskBehavior) Done(ctx model.TaskContext) ([]*definition.Flow, error) {

	task := ctx.Task()

	if ctx.Logger().DebugEnabled() {
		ctx.Logger().Debugf("Task '%s' Done, evaluating %s split", task.ID(), task.SplitType())
	}

	flows, err := EvalSplit(task, ctx.Definition().PostsetFlows(task), ctx.Data())
	if err != nil {
		ctx.Logger().Errorf("Error evaluating split of Task '%s': %v", task.ID(), err)
		return nil, err
	}

	return flows, nil
}
