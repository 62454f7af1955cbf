package model

import (
	"github.com/project-flogo/petriflow/definition"
)

const (
	TypeAtomic        = "atomic"
	TypeMultiInstance = "multi-instance"
)

// NetModel defines the execution Model for a net.  It contains the
// execution behaviors for Tasks.
type NetModel struct {
	name                string
	defaultTaskBehavior TaskBehavior
	taskBehaviors       map[string]TaskBehavior
}

// New creates a new NetModel
func New(name string) *NetModel {

	var netModel NetModel
	netModel.name = name
	netModel.taskBehaviors = make(map[string]TaskBehavior)

	return &netModel
}

// Name returns the name of the NetModel
func (nm *NetModel) Name() string {
	return nm.name
}

// GetDefaultTaskBehavior returns the default TaskBehavior of the Model
func (nm *NetModel) GetDefaultTaskBehavior() TaskBehavior {
	return nm.defaultTaskBehavior
}

// RegisterDefaultTaskBehavior registers the default TaskBehavior for the Model
func (nm *NetModel) RegisterDefaultTaskBehavior(id string, taskBehavior TaskBehavior) {

	nm.RegisterTaskBehavior(id, taskBehavior)
	nm.defaultTaskBehavior = taskBehavior
}

// RegisterTaskBehavior registers the specified TaskBehavior with the Model
func (nm *NetModel) RegisterTaskBehavior(id string, taskBehavior TaskBehavior) {
	nm.taskBehaviors[id] = taskBehavior
}

func (nm *NetModel) IsValidTaskType(taskType string) bool {

	if taskType == "" && nm.defaultTaskBehavior != nil {
		return true
	}

	_, exists := nm.taskBehaviors[taskType]
	return exists
}

// GetTaskBehavior returns TaskBehavior with the specified ID in the NetModel
func (nm *NetModel) GetTaskBehavior(id string) TaskBehavior {

	if id == "" {
		return nm.defaultTaskBehavior
	}

	return nm.taskBehaviors[id]
}

// TaskBehaviorFor returns the TaskBehavior executing the specified task.
// Tasks without a declared type run the multi-instance behavior when they
// have multi-instance attributes, the default behavior otherwise.
func (nm *NetModel) TaskBehaviorFor(task *definition.Task) TaskBehavior {

	if task.TypeID() != "" {
		return nm.taskBehaviors[task.TypeID()]
	}

	if task.IsMultiInstance() {
		if behavior, ok := nm.taskBehaviors[TypeMultiInstance]; ok {
			return behavior
		}
	}

	return nm.defaultTaskBehavior
}

// Validate checks that every task of the definition has a behavior
func (nm *NetModel) Validate(def *definition.Definition) error {
	for _, task := range def.Tasks() {
		if nm.TaskBehaviorFor(task) == nil {
			return &definition.TopologyError{NetID: def.ID(),
				Problems: []string{"task '" + task.ID() + "' has unsupported type '" + task.TypeID() + "'"}}
		}
	}
	return nil
}
