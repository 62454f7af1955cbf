package model

import (
	"github.com/project-flogo/core/support/log"
	"github.com/project-flogo/petriflow/definition"
	"github.com/project-flogo/petriflow/identifier"
)

// NetContext is the read-only view of a running net used when executing a
// Task Behavior function
type NetContext interface {

	// Definition returns the net definition associated with this context
	Definition() *definition.Definition

	// Tokens returns the tokens on the specified element in arrival order
	Tokens(elementID string) []*identifier.Identifier

	// IsBusy indicates if the specified task has running instances
	IsBusy(taskID string) bool

	// Data returns the case data guards and queries are evaluated against
	Data() map[string]interface{}

	// Logger the logger for the case
	Logger() log.Logger
}

// TaskContext is the execution context of the Task when executing
// a Task Behavior function
type TaskContext interface {
	NetContext

	// Task returns the Task associated with this context
	Task() *definition.Task
}
