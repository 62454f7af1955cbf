package instance

import (
	"github.com/project-flogo/core/support/log"

	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
	"github.com/project-flogo/petriflow/model"
	"github.com/project-flogo/petriflow/support/event"
)

// TaskInst is one activation of a task: the tokens it consumed, the working
// token it runs under and the progress of its instances
type TaskInst struct {
	id      string
	task    *definition.Task
	status  model.ActivationStatus
	working *identifier.Identifier

	consumed []event.TokenRef
	items    []string

	progress model.Progress
	outputs  []interface{}
}

// ID returns the id of the activation, the id of its working token
func (ti *TaskInst) ID() string {
	return ti.id
}

// Task returns the task of the activation
func (ti *TaskInst) Task() *definition.Task {
	return ti.task
}

// Status returns the status of the activation
func (ti *TaskInst) Status() model.ActivationStatus {
	return ti.status
}

// Progress returns the progress of the instances of the activation
func (ti *TaskInst) Progress() model.Progress {
	return ti.progress
}

func (ti *TaskInst) isMultiInstance() bool {
	return ti.task.IsMultiInstance()
}

// taskContext exposes the case to the TaskBehavior of a task
type taskContext struct {
	c    *Case
	task *definition.Task
}

func (tc *taskContext) Definition() *definition.Definition {
	return tc.c.def
}

func (tc *taskContext) Tokens(elementID string) []*identifier.Identifier {
	return tc.c.marking.Tokens(elementID)
}

func (tc *taskContext) IsBusy(taskID string) bool {
	return tc.c.marking.IsMarked(taskID) || tc.c.hasActivation(taskID)
}

func (tc *taskContext) Data() map[string]interface{} {
	return tc.c.data
}

func (tc *taskContext) Logger() log.Logger {
	return tc.c.logger
}

func (tc *taskContext) Task() *definition.Task {
	return tc.task
}

func (c *Case) newTaskContext(task *definition.Task) *taskContext {
	return &taskContext{c: c, task: task}
}

func (c *Case) behavior(task *definition.Task) model.TaskBehavior {
	return c.netModel.TaskBehaviorFor(task)
}

func (c *Case) hasActivation(taskID string) bool {
	for _, ti := range c.taskInsts {
		if ti.task.ID() == taskID {
			return true
		}
	}
	return false
}

// activations returns the running activations of the task in creation order
func (c *Case) activations(taskID string) []*TaskInst {
	var insts []*TaskInst
	for _, id := range c.taskInstOrder {
		if ti := c.taskInsts[id]; ti != nil && ti.task.ID() == taskID {
			insts = append(insts, ti)
		}
	}
	return insts
}
