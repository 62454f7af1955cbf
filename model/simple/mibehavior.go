package simple

import (
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/model"
)

// MultiInstanceTaskBehavior implements model.TaskBehavior for tasks with
// multi-instance attributes
type MultiInstanceTaskBehavior struct {
	TaskBehavior
}

// Instances implements model.TaskBehavior.Instances
func (tb *MultiInstanceTaskBehavior) Instances(ctx model.TaskContext) (int, []interface{}, error) {

	mi := ctx.Task().MultiInstance()
	if mi == nil {
		return tb.TaskBehavior.Instances(ctx)
	}

	n, items, err := mi.Instances(ctx.Data())
	if err != nil {
		return 0, nil, err
	}

	if ctx.Logger().DebugEnabled() {
		ctx.Logger().Debugf("Task '%s' creating %d instances [%s]", ctx.Task().ID(), n, mi.Creation())
	}

	return n, items, nil
}

// Eval implements model.TaskBehavior.Eval
func (tb *MultiInstanceTaskBehavior) Eval(ctx model.TaskContext, progress model.Progress) model.EvalResult {

	mi := ctx.Task().MultiInstance()
	if mi == nil {
		return tb.TaskBehavior.Eval(ctx, progress)
	}

	required := mi.Required(progress.Instances)
	if progress.Completed >= required {
		return model.EvalDone
	}

	if mi.Completion() == definition.CompletionAll {
		if progress.Failed > 0 {
			return model.EvalFail
		}
		return model.EvalWait
	}

	// instances that may still complete, including those that can be added
	potential := progress.Completed + progress.Running()
	if mi.CanAdd() && progress.Instances < mi.Max() {
		potential += mi.Max() - progress.Instances
	}

	if potential < required {
		return model.EvalFail
	}

	return model.EvalWait
}
