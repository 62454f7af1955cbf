package instance

import (
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support/event"
)

// cancelRegion resets every element of the cancellation set of the task:
// tokens are removed whether or not the element is enabled, work items of
// tasks in the set are cancelled and their activations discarded
func (c *Case) cancelRegion(task *definition.Task, fr *event.FireResult) {

	for _, elementID := range task.CancellationSet() {

		removed := c.marking.RemoveAll(elementID)
		for _, token := range removed {
			fr.Cancelled = append(fr.Cancelled, event.TokenRef{ID: token.ID(), Location: elementID})
		}

		cancelled := 0
		if target := c.def.GetTask(elementID); target != nil {
			cancelled = c.cancelTaskWork(target)
		}

		for _, token := range removed {
			c.tree.Release(token)
		}

		if len(removed) == 0 && cancelled == 0 {
			warning := &model.CancellationError{TaskID: task.ID(), ElementID: elementID}
			fr.Warnings = append(fr.Warnings, warning)
			c.logger.Warnf("%v", warning)
		}
	}
}

// cancelTaskWork cancels the active work items of the task and discards its
// running activations, it returns the number of work items cancelled
func (c *Case) cancelTaskWork(task *definition.Task) int {

	cancelled := 0
	for _, id := range c.itemOrder {
		wi := c.workItems[id]
		if wi.taskID == task.ID() && c.cancelItem(wi) {
			cancelled++
		}
	}

	for _, ti := range c.activations(task.ID()) {
		ti.status = model.ActivationDone
		c.marking.Remove(task.ID(), ti.working.ID())
		c.tree.Release(ti.working)
		c.removeTaskInst(ti)
	}

	return cancelled
}
